// Package monitoring holds the diagnostic logging channel shared by the
// replay packages.
package monitoring

import "log"

// DiagPrefix marks reports on the diagnostic channel: setup failures,
// terminal stream errors and transport faults.
const DiagPrefix = "[diag] "

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Diagnosticf reports a terminal condition on the diagnostic channel.
func Diagnosticf(format string, v ...interface{}) {
	Logf(DiagPrefix+format, v...)
}
