package utils

import (
	"errors"
	"os"
	"testing"
)

func TestEnvOrDefault(t *testing.T) {
	const key = "LEDGERCORE_UTIL_TEST_STRING"
	_ = os.Unsetenv(key)
	if got := EnvOrDefault(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	_ = os.Setenv(key, "value")
	if got := EnvOrDefault(key, "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	_ = os.Setenv(key, "")
	if got := EnvOrDefault(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for empty value, got %q", got)
	}
}

func TestEnvOrDefaultUint64(t *testing.T) {
	const key = "LEDGERCORE_UTIL_TEST_UINT64"
	_ = os.Unsetenv(key)
	if got := EnvOrDefaultUint64(key, 99); got != 99 {
		t.Fatalf("expected 99, got %d", got)
	}
	_ = os.Setenv(key, "42")
	if got := EnvOrDefaultUint64(key, 99); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	_ = os.Setenv(key, "bad")
	if got := EnvOrDefaultUint64(key, 77); got != 77 {
		t.Fatalf("expected fallback on parse error, got %d", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	base := errors.New("boom")
	wrapped := Wrap(base, "loading config")
	if !errors.Is(wrapped, base) {
		t.Fatal("wrapped error should match the base via errors.Is")
	}
	if wrapped.Error() != "loading config: boom" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}
