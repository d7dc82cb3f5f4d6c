package config

import (
	"testing"
	"time"
)

func TestLoadAppConfig_Defaults(t *testing.T) {
	cfg, err := LoadAppConfig()
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	if cfg.BusinessTimeZone != "Asia/Jakarta" {
		t.Fatalf("timezone = %q, want Asia/Jakarta", cfg.BusinessTimeZone)
	}
	if cfg.PaymentCodeTTL != 5*time.Minute {
		t.Fatalf("payment code ttl = %v, want 5m", cfg.PaymentCodeTTL)
	}
	if cfg.MinLeadTime != 3*time.Hour {
		t.Fatalf("lead time = %v, want 3h", cfg.MinLeadTime)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("sweep interval = %v, want 1m", cfg.SweepInterval)
	}
	if cfg.ExpiredConfirmPolicy != ExpiredPolicyMark {
		t.Fatalf("policy = %q, want %q", cfg.ExpiredConfirmPolicy, ExpiredPolicyMark)
	}
}

func TestLoadAppConfig_RejectsUnknownPolicy(t *testing.T) {
	t.Setenv("EXPIRED_CONFIRM_POLICY", "ignore")
	if _, err := LoadAppConfig(); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestLoadAppConfig_RejectsUnknownZone(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus")
	if _, err := LoadAppConfig(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestLoadDBConfig_SQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "test.db")

	cfg, err := LoadDBConfig()
	if err != nil {
		t.Fatalf("LoadDBConfig: %v", err)
	}
	if cfg.Driver != DriverSQLite || cfg.SQLitePath != "test.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadDBConfig_UnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := LoadDBConfig(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
