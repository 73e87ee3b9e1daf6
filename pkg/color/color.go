// Package color provides terminal color output for ctverify.
// It respects the NO_COLOR environment variable (https://no-color.org/).
package color

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

var state struct {
	once    sync.Once
	enabled atomic.Bool
}

// Init decides once whether colors are used, from NO_COLOR, TERM=dumb and
// the --no-color flag. Later calls have no effect; use Enable or Disable.
func Init(noColorFlag bool) {
	state.once.Do(func() {
		disabled := noColorFlag
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			disabled = true
		}
		if os.Getenv("TERM") == "dumb" {
			disabled = true
		}
		state.enabled.Store(!disabled)
	})
}

// Enabled reports whether color output is on.
func Enabled() bool {
	Init(false)
	return state.enabled.Load()
}

// Disable turns off color output.
func Disable() {
	Init(false)
	state.enabled.Store(false)
}

// Enable turns on color output.
func Enable() {
	Init(false)
	state.enabled.Store(true)
}

// ANSI codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	DimCode = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Cyan    = "\033[36m"
)

func wrap(code, s string) string {
	if !Enabled() {
		return s
	}
	return code + s + Reset
}

// Success formats a passing outcome in green.
func Success(s string) string { return wrap(Green, s) }

// Successf is Success with printf-style arguments.
func Successf(format string, args ...any) string { return Success(fmt.Sprintf(format, args...)) }

// Error formats a failing outcome in red.
func Error(s string) string { return wrap(Red, s) }

// Errorf is Error with printf-style arguments.
func Errorf(format string, args ...any) string { return Error(fmt.Sprintf(format, args...)) }

// Warning formats a caution in yellow.
func Warning(s string) string { return wrap(Yellow, s) }

// Fingerprint formats a certificate fingerprint in cyan.
func Fingerprint(s string) string { return wrap(Cyan, s) }

// Header formats a heading in bold.
func Header(s string) string { return wrap(Bold, s) }

// Dim formats secondary information.
func Dim(s string) string { return wrap(DimCode, s) }

// Code formats a command or path.
func Code(s string) string { return wrap(Bold+DimCode, s) }
