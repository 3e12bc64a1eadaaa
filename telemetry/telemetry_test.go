package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		enabled  bool
	}{
		{"no endpoint", "", true},
		{"disabled", "http://localhost:4318", false},
		// a non-routable address so nothing is exported
		{"enabled", "http://192.0.2.1:4318", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), "contactsim-test", tt.endpoint, tt.enabled)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}

func TestInitSentryWithoutDSN(t *testing.T) {
	flush, err := InitSentry("", "test", "dev")
	if err != nil {
		t.Fatalf("InitSentry: %v", err)
	}
	flush()
	// without a client these are no-ops
	CaptureFatal("test", errors.New("boom"))
	CaptureFatal("test", nil)
}

func TestInitSentryRejectsBadDSN(t *testing.T) {
	if _, err := InitSentry("not a dsn", "test", "dev"); err == nil {
		t.Fatalf("expected an error for a malformed DSN")
	}
}

func TestRecoverRepanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Fatalf("recovered %v, want boom", r)
		}
	}()
	func() {
		defer Recover("test")
		panic("boom")
	}()
}
