package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q, want %q", cfg.GRPCAddr(), "0.0.0.0:50051")
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("DatabaseDriver = %q, want postgres", cfg.DatabaseDriver)
	}
	if cfg.DBTxTimeout != 5*time.Second {
		t.Fatalf("DBTxTimeout = %v, want 5s", cfg.DBTxTimeout)
	}
	if cfg.DBSlowQuery != 500*time.Millisecond {
		t.Fatalf("DBSlowQuery = %v, want 500ms", cfg.DBSlowQuery)
	}
	if cfg.Timezone != time.UTC {
		t.Fatalf("Timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.SMSEnabled {
		t.Fatalf("SMSEnabled = true, want false")
	}
	if cfg.RemindersSchedule != "0 18 * * *" {
		t.Fatalf("RemindersSchedule = %q", cfg.RemindersSchedule)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SLOTKEEPER_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("SLOTKEEPER_DATABASE_DRIVER", "Memory")
	t.Setenv("SLOTKEEPER_SMS_ENABLED", "true")
	t.Setenv("SLOTKEEPER_SMS_RATE_PER_SECOND", "2.5")
	t.Setenv("SLOTKEEPER_TIMEZONE", "America/New_York")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("GRPCAddr = %q, want %q", cfg.GRPCAddr(), "127.0.0.1:6000")
	}
	if cfg.DatabaseDriver != "memory" {
		t.Fatalf("DatabaseDriver = %q, want memory", cfg.DatabaseDriver)
	}
	if !cfg.SMSEnabled || cfg.SMSRatePerSecond != 2.5 {
		t.Fatalf("sms = %v/%v, want true/2.5", cfg.SMSEnabled, cfg.SMSRatePerSecond)
	}
	if cfg.Timezone.String() != "America/New_York" {
		t.Fatalf("Timezone = %v, want America/New_York", cfg.Timezone)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "SLOTKEEPER_DATABASE_TX_TIMEOUT", val: "soon"},
		{name: "bad timezone", key: "SLOTKEEPER_TIMEZONE", val: "Mars/Olympus"},
		{name: "bad driver", key: "SLOTKEEPER_DATABASE_DRIVER", val: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
