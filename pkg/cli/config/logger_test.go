package config_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/docpack/docpack/pkg/cli/config"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{level: "debug"},
		{level: "DEBUG"},
		{level: "info"},
		{level: "Warn"},
		{level: "error"},
		{level: "ERROR"},
		{level: "verbose", wantErr: true},
		{level: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			logger := &config.Logger{
				Level:  tt.level,
				Format: "console",
				Output: io.Discard,
			}

			result, err := logger.Configure()
			if (err != nil) != tt.wantErr {
				t.Errorf("Configure() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && result == nil {
				t.Error("Configure() returned nil logger for valid input")
			}
		})
	}
}

func TestLogger_Configure_Format(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		wantErr bool
	}{
		{name: "JSON format", format: "json"},
		{name: "Console format", format: "console"},
		{name: "Default format", format: ""},
		{name: "Unknown format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &config.Logger{
				Level:  "info",
				Format: tt.format,
				Output: &buf,
			}

			result, err := logger.Configure()
			if (err != nil) != tt.wantErr {
				t.Errorf("Configure() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			result.Info("archive finished", "entries", 3)
			if !strings.Contains(buf.String(), "archive finished") {
				t.Errorf("message missing from output: %q", buf.String())
			}
		})
	}
}

func TestLogger_Configure_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{
		Level:  "warn",
		Format: "json",
		Output: &buf,
	}

	result, err := logger.Configure()
	if err != nil {
		t.Fatalf("Configure() unexpected error = %v", err)
	}

	result.Info("roster fetched")
	result.Warn("document skipped")

	out := buf.String()
	if strings.Contains(out, "roster fetched") {
		t.Errorf("info record passed a warn logger: %s", out)
	}
	if !strings.Contains(out, "document skipped") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestLogger_Flags(t *testing.T) {
	logger := &config.Logger{}
	flags := logger.Flags()

	if len(flags) != 2 {
		t.Errorf("Flags() returned %d flags, want 2", len(flags))
	}

	flagNames := make(map[string]bool)
	for _, flag := range flags {
		if f, ok := flag.(interface{ Names() []string }); ok && len(f.Names()) > 0 {
			flagNames[f.Names()[0]] = true
		}
	}

	if !flagNames["log-level"] {
		t.Error("Missing log-level flag")
	}
	if !flagNames["log-format"] {
		t.Error("Missing log-format flag")
	}
}

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	result, err := logger.Configure()
	if err != nil {
		t.Fatalf("Configure() unexpected error = %v", err)
	}

	type credentials struct {
		Email    string
		Password string
	}
	result.Info("login attempt", "credentials", credentials{Email: "admin@example.com", Password: "hunter2"})
	result.Info("cache config", "cache", config.Cache{Backend: "redis", RedisAddr: "redis:6379", RedisPassword: "s3cr3t-redis"})

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("password leaked into log output: %s", out)
	}
	if strings.Contains(out, "s3cr3t-redis") {
		t.Errorf("redis password leaked into log output: %s", out)
	}
	if !strings.Contains(out, "admin@example.com") {
		t.Errorf("non-secret field missing from log output: %s", out)
	}
	if !strings.Contains(out, "redis:6379") {
		t.Errorf("non-secret field missing from log output: %s", out)
	}
}
