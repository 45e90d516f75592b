package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })
	fn()
	return buf.String()
}

func TestDebugfSuppressedWhenNotVerbose(t *testing.T) {
	SetVerbose(false)
	out := captureLog(t, func() { Debugf("hidden %d", 1) })
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
}

func TestDebugfEmittedWhenVerbose(t *testing.T) {
	SetVerbose(true)
	t.Cleanup(func() { SetVerbose(false) })
	out := captureLog(t, func() { Debugf("shown %d", 1) })
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, "shown 1") {
		t.Fatalf("expected DEBUG line with formatted args, got %q", out)
	}
}

func TestInfofWarnfErrorfAlwaysEmit(t *testing.T) {
	SetVerbose(false)
	out := captureLog(t, func() {
		Infof("info %s", "a")
		Warnf("warn %s", "b")
		Errorf("error %s", "c")
	})
	for _, want := range []string{"INFO", "info a", "WARN", "warn b", "ERROR", "error c"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
}
