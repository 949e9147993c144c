package config

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("LEGACY_HOST", "")
	if got := GetEnv("LEGACY_HOST", "socialistappeal.org"); got != "socialistappeal.org" {
		t.Fatalf("expected socialistappeal.org, got %s", got)
	}
	t.Setenv("LEGACY_HOST", "socialist.net")
	if got := GetEnv("LEGACY_HOST", "socialistappeal.org"); got != "socialist.net" {
		t.Fatalf("expected socialist.net, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("REFRESH_TIMER", "")
	if got := GetEnvInt("REFRESH_TIMER", 300); got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}
	t.Setenv("REFRESH_TIMER", "60")
	if got := GetEnvInt("REFRESH_TIMER", 300); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	t.Setenv("REFRESH_TIMER", "five minutes")
	if got := GetEnvInt("REFRESH_TIMER", 300); got != 300 {
		t.Fatalf("expected 300 on parse error, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("SYNC_ENABLED", "")
	if got := GetEnvBool("SYNC_ENABLED", true); got != true {
		t.Fatalf("expected true default, got %v", got)
	}
	t.Setenv("SYNC_ENABLED", "false")
	if got := GetEnvBool("SYNC_ENABLED", true); got != false {
		t.Fatalf("expected false, got %v", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if GetLogLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	t.Setenv("LOG_LEVEL", "warn")
	if GetLogLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level")
	}
	t.Setenv("LOG_LEVEL", "error")
	if GetLogLevel() != logrus.ErrorLevel {
		t.Fatalf("expected error level")
	}
	t.Setenv("LOG_LEVEL", "")
	if GetLogLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level by default")
	}
}

func TestRequireEnv_TrimsWhitespace(t *testing.T) {
	t.Setenv("DB_CTRL_URL", "  http://dbctrl:3002  ")
	if got := RequireEnv("DB_CTRL_URL"); got != "http://dbctrl:3002" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestLoadEnv_NoFile(t *testing.T) {
	// Should not panic or error; just log debug
	logger := logrus.New()
	LoadEnv(logger)
}
