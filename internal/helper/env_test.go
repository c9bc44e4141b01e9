package helper

import (
	"testing"
	"time"
)

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("WAPAIR_TEST_INT", "42")
	if got := GetEnvAsInt("WAPAIR_TEST_INT", 7); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if got := GetEnvAsInt("WAPAIR_TEST_UNSET", 7); got != 7 {
		t.Fatalf("got %d, want fallback 7", got)
	}
	t.Setenv("WAPAIR_TEST_INT", "nope")
	if got := GetEnvAsInt("WAPAIR_TEST_INT", 7); got != 7 {
		t.Fatalf("bad input: got %d, want fallback 7", got)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("WAPAIR_TEST_DUR", "250ms")
	if got := GetEnvAsDuration("WAPAIR_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("got %v, want 250ms", got)
	}

	// Bare numbers are seconds.
	t.Setenv("WAPAIR_TEST_DUR", "30")
	if got := GetEnvAsDuration("WAPAIR_TEST_DUR", time.Second); got != 30*time.Second {
		t.Fatalf("got %v, want 30s", got)
	}

	if got := GetEnvAsDuration("WAPAIR_TEST_DUR_UNSET", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("got %v, want fallback 2m", got)
	}
}
