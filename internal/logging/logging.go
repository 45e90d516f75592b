// Package logging gives every package a leveled logf the way the teacher's
// Nakama handlers took an injected runtime.Logger - ours has no per-request
// logger to thread through, so the call shape is a package-level function
// gated on a verbose flag, the way Seednode-partybox's logf gates verbose
// output on cfg.verbose.
package logging

import (
	"log"
	"time"
)

var verbose = false

// SetVerbose toggles whether Debugf output is emitted. Called once from
// cmd/server at startup from the --verbose flag.
func SetVerbose(v bool) { verbose = v }

const logDate = "2006-01-02T15:04:05.000Z07:00"

// Debugf logs only when verbose mode is on.
func Debugf(format string, args ...any) {
	if !verbose {
		return
	}
	logWithLevel("DEBUG", format, args...)
}

// Infof always logs.
func Infof(format string, args ...any) {
	logWithLevel("INFO", format, args...)
}

// Warnf always logs.
func Warnf(format string, args ...any) {
	logWithLevel("WARN", format, args...)
}

// Errorf always logs.
func Errorf(format string, args ...any) {
	logWithLevel("ERROR", format, args...)
}

func logWithLevel(level, format string, args ...any) {
	log.Printf("%s %s | "+format, append([]any{time.Now().Format(logDate), level}, args...)...)
}
