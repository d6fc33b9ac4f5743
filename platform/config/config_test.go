package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/claims")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("IDENTITY_MODE", "")
	t.Setenv("SESSION_TTL", "")

	// Empty values fall back to parsing the empty string, which must fail validation.
	if _, err := Load(); err == nil {
		t.Fatal("expected error for empty IDENTITY_MODE and SESSION_TTL")
	}

	t.Setenv("IDENTITY_MODE", "demo")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("APP_ENV", "development")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsDemoIdentity() {
		t.Fatal("expected demo identity mode")
	}
	if cfg.GetSessionTTL() != 30*time.Minute {
		t.Fatalf("unexpected session ttl %s", cfg.GetSessionTTL())
	}
}

func TestDemoIdentityRejectedInProduction(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/claims",
		JWTAccessSecret: "secret",
		SessionTTL:      time.Hour,
		IdentityMode:    IdentityModeDemo,
		Env:             "production",
	}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected demo mode to be refused in production")
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected split result %v", got)
	}
}
