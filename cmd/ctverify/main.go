// Command ctverify verifies the code transparency of application packages.
package main

import "github.com/jvs-project/ctverify/internal/cli"

func main() {
	cli.Execute()
}
