package support

import (
	"testing"
	"time"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("GB_TEST_STR", "hello")
	if got := GetEnv("GB_TEST_STR", "x"); got != "hello" {
		t.Errorf("GetEnv = %q, want hello", got)
	}
	if got := GetEnv("GB_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv fallback = %q", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("GB_TEST_BOOL", "true")
	if !GetEnvBool("GB_TEST_BOOL", false) {
		t.Error("GetEnvBool should parse true")
	}
	t.Setenv("GB_TEST_BOOL", "not-a-bool")
	if !GetEnvBool("GB_TEST_BOOL", true) {
		t.Error("GetEnvBool should fall back on parse failure")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("GB_TEST_DUR", "90m")
	if got := GetEnvDuration("GB_TEST_DUR", time.Hour); got != 90*time.Minute {
		t.Errorf("GetEnvDuration = %v", got)
	}
	t.Setenv("GB_TEST_DUR", "-5m")
	if got := GetEnvDuration("GB_TEST_DUR", time.Hour); got != time.Hour {
		t.Errorf("negative duration should fall back, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("GB_TEST_LIST", " a.example/list.txt , b.example/list.txt ,,")
	got := GetEnvList("GB_TEST_LIST")
	if len(got) != 2 || got[0] != "a.example/list.txt" || got[1] != "b.example/list.txt" {
		t.Errorf("GetEnvList = %v", got)
	}
}
