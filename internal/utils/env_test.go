package utils

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("YQS_TEST_STR", "value")
	if got := GetEnv("YQS_TEST_STR", "fallback", nil); got != "value" {
		t.Fatalf("want value got %q", got)
	}
	if got := GetEnv("YQS_TEST_MISSING", "fallback", nil); got != "fallback" {
		t.Fatalf("want fallback got %q", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("YQS_TEST_INT", "7")
	if got := GetEnvAsInt("YQS_TEST_INT", 3, nil); got != 7 {
		t.Fatalf("want 7 got %d", got)
	}
	t.Setenv("YQS_TEST_BAD", "seven")
	if got := GetEnvAsInt("YQS_TEST_BAD", 3, nil); got != 3 {
		t.Fatalf("unparsable value must fall back, got %d", got)
	}
	if got := GetEnvAsInt("YQS_TEST_INT_MISSING", 3, nil); got != 3 {
		t.Fatalf("missing var must fall back, got %d", got)
	}
}
