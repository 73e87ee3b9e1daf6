// Package ctverify provides the library API for code transparency
// verification of installed application packages.
//
// A package is described by a PackageSource: the base archive, any split
// archives, and the DER certificates that signed it. Verify never returns an
// error; every outcome, including failures, is reported in the returned
// model.VerificationResult.
//
// # Concurrency Safety
//
// Verification only reads the archives. Any number of Verify calls may run
// concurrently, against the same package or different ones.
//
// # Usage
//
//	res := ctverify.VerifyDirectory(ctx, "/data/app/com.example-1",
//	    []string{"signer.pem"}, ctverify.Options{})
//	if !res.IsVerified() {
//	    log.Printf("code transparency: %s", res.ErrorMessage)
//	}
package ctverify
