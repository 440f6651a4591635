// Package errors provides the classified error primitives used across web2apk.
//
// Every pipeline stage reports failures as a ClassifiedError so that callers can
// decide, without string matching, whether a failure is fatal to the conversion
// or merely advisory:
//
//   - ErrorCategory: which stage or concern failed (icon, content, scaffold, gradle, build, ...)
//   - ErrorSeverity: fatal / error abort the pipeline, warning is recorded as an advisory
//   - RetryStrategy: whether repeating the request could help
//   - ErrorContext: structured key/value diagnostics (step, bucket, strategy, output tail)
//
// Example usage:
//
//	err := errors.ScaffoldError("npm install failed").
//		WithCause(runErr).
//		WithContext("step", "install-core").
//		WithContext("output", tail).
//		Build()
package errors
