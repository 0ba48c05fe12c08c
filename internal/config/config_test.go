package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHOWROOM_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.Business.Location.String() != "Europe/Berlin" {
		t.Fatalf("Location = %v", cfg.Business.Location)
	}
	if cfg.Booking.SlotMinutes != 60 || cfg.Booking.MaxRangeDays != 90 || cfg.Booking.MaxDurationMinutes != 480 {
		t.Fatalf("Booking = %+v", cfg.Booking)
	}
	if cfg.Reminders.HoursBefore != 24 || cfg.Reminders.MinHoursAfterBooking != 12 || cfg.Reminders.PassInterval != 24*time.Hour {
		t.Fatalf("Reminders = %+v", cfg.Reminders)
	}
	if cfg.Reminders.Schedule != "0 8 * * *" {
		t.Fatalf("Schedule = %q", cfg.Reminders.Schedule)
	}
	if cfg.SMS.Enabled() {
		t.Fatalf("SMS should be disabled without credentials")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOWROOM_CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("SHOWROOM_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("SHOWROOM_DATABASE_DRIVER", "memory")
	t.Setenv("SHOWROOM_BOOKING_SLOT_MINUTES", "30")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("SHOWROOM_SECRETS_BOOKING", "booking-key")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("TWILIO_PHONE_NUMBER", "+4930000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.DatabaseDriver != "memory" || cfg.Booking.SlotMinutes != 30 || cfg.Secrets.Cron != "cron" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Secrets.Booking != "booking-key" {
		t.Fatalf("Secrets.Booking = %q", cfg.Secrets.Booking)
	}
	if !cfg.SMS.Enabled() {
		t.Fatalf("SMS should be enabled")
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"unknown timezone", "SHOWROOM_BUSINESS_TIMEZONE", "Mars/Olympus", "business.timezone"},
		{"bad duration", "SHOWROOM_CACHE_TTL", "five minutes", "cache.ttl"},
		{"bad driver", "SHOWROOM_DATABASE_DRIVER", "sqlite", "database.driver"},
		{"slot too long", "SHOWROOM_BOOKING_SLOT_MINUTES", "1441", "booking.slot_minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("SHOWROOM_CONFIG_FILE", "")
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "showroom.yaml")
	body := "business:\n  name: Atelier\n  timezone: Europe/Vienna\nreminders:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SHOWROOM_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Business.Name != "Atelier" || cfg.Business.Location.String() != "Europe/Vienna" || cfg.Reminders.Enabled {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("SHOWROOM_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
