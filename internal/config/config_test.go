package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestLoadDomain_defaults(t *testing.T) {
	for _, k := range []string{"TAX_RATE", "REMINDER_DAYS", "UPCOMING_WINDOW_DAYS", "STATS_CACHE_TTL", "TOKENABLE_TYPE"} {
		t.Setenv(k, "")
	}
	d := LoadDomain()
	if !d.TaxRate.Equal(decimal.RequireFromString("0.18")) {
		t.Fatalf("tax rate: %s", d.TaxRate)
	}
	if d.ReminderDays != 3 || d.UpcomingWindowDays != 7 || d.StatsCacheTTL != time.Minute {
		t.Fatalf("domain: %+v", d)
	}
	if d.TokenableType != defaultTokenableType {
		t.Fatalf("tokenable type: %q", d.TokenableType)
	}
}

func TestLoadDomain_overrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.10")
	t.Setenv("REMINDER_DAYS", "5")
	t.Setenv("STATS_CACHE_TTL", "5m")
	t.Setenv("UPCOMING_WINDOW_DAYS", "not-a-number")

	d := LoadDomain()
	if !d.TaxRate.Equal(decimal.RequireFromString("0.1")) || d.ReminderDays != 5 || d.StatsCacheTTL != 5*time.Minute {
		t.Fatalf("domain: %+v", d)
	}
	if d.UpcomingWindowDays != 7 {
		t.Fatalf("bad int should fall back, got %d", d.UpcomingWindowDays)
	}
}

func TestNewLogger(t *testing.T) {
	l := NewLogger("debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level: %s", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter: %T", l.Formatter)
	}
	if NewLogger("loud", "").GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}
