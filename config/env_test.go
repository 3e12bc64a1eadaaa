package config

import (
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestLoadRuntimeDefaults(t *testing.T) {
	for _, key := range []string{
		"CONTACTSIM_TIME_SCALE", "CONTACTSIM_FIXED_STEP", "CONTACTSIM_STEPS",
		"CONTACTSIM_JOURNAL", "CONTACTSIM_SCRIPT", "CONTACTSIM_OTEL_ENDPOINT",
		"CONTACTSIM_OTEL_ENABLED", "SENTRY_DSN", "SENTRY_ENVIRONMENT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadRuntime()
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if cfg.TimeScale != 0 || cfg.FixedStep != 0 || cfg.Steps != 0 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if !cfg.OTelEnabled || cfg.SentryEnvironment != "development" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRuntimeOverrides(t *testing.T) {
	t.Setenv("CONTACTSIM_TIME_SCALE", "0.05")
	t.Setenv("CONTACTSIM_FIXED_STEP", "10ms")
	t.Setenv("CONTACTSIM_STEPS", "600")
	t.Setenv("CONTACTSIM_JOURNAL", "/tmp/events.db")
	t.Setenv("CONTACTSIM_SCRIPT", "scripts/events.lua")
	t.Setenv("CONTACTSIM_OTEL_ENABLED", "false")

	cfg, err := LoadRuntime()
	if err != nil {
		t.Fatalf("LoadRuntime: %v", err)
	}
	if cfg.TimeScale != 0.05 || cfg.FixedStep != 10*time.Millisecond || cfg.Steps != 600 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Journal != "/tmp/events.db" || cfg.Script != "scripts/events.lua" || cfg.OTelEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRuntimeErrors(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"CONTACTSIM_TIME_SCALE", "fast", "parse env:"},
		{"CONTACTSIM_TIME_SCALE", "-1", "must not be negative"},
		{"CONTACTSIM_FIXED_STEP", "-5ms", "must not be negative"},
		{"CONTACTSIM_STEPS", "-2", "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadRuntime()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want %q", err, tt.want)
			}
		})
	}
}

// os.Exit cannot be intercepted in-process, so Exitf runs in a subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "engine unavailable")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: engine unavailable") {
		t.Fatalf("expected stderr to contain the message, got %q", string(out))
	}
}
