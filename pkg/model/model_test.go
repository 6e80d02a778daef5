package model

import (
	"errors"
	"strings"
	"testing"
)

func TestBackendErrorUnwrap(t *testing.T) {
	sentinel := errors.New("boom")
	err := &BackendError{Provider: "anthropic", Operation: "complete", Err: sentinel}
	if !errors.Is(err, sentinel) {
		t.Fatal("BackendError should unwrap to the cause")
	}
	msg := err.Error()
	if !strings.Contains(msg, "anthropic") || !strings.Contains(msg, "complete") {
		t.Fatalf("message = %q", msg)
	}
}
