package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	// Clear anything the environment or a stray .env might inject.
	for _, key := range []string{
		"APP_PORT", "DATABASE_DSN", "APP_ENV",
		"SECRET_KEY", "REFRESH_SECRET_KEY", "BOARD_SECRET_KEY", "BOARD_REFRESH_SECRET_KEY",
		"ACCESS_TOKEN_TTL_MINUTES", "REFRESH_TOKEN_TTL_DAYS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Env = %q, want dev", cfg.Env)
	}
	if cfg.AccessTokenTTLMinutes != 60 {
		t.Errorf("AccessTokenTTLMinutes = %d, want 60", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("RefreshTokenTTLDays = %d, want 7", cfg.RefreshTokenTTLDays)
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.BoardSecret == "" || cfg.BoardRefreshSecret == "" {
		t.Error("token secrets must default to non-empty dev values")
	}
	// Each scope must sign with its own secret.
	secrets := map[string]bool{
		cfg.AccessSecret:       true,
		cfg.RefreshSecret:      true,
		cfg.BoardSecret:        true,
		cfg.BoardRefreshSecret: true,
	}
	if len(secrets) != 4 {
		t.Error("default token secrets are not pairwise distinct")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SECRET_KEY", "s1")
	t.Setenv("REFRESH_SECRET_KEY", "s2")
	t.Setenv("BOARD_SECRET_KEY", "s3")
	t.Setenv("BOARD_REFRESH_SECRET_KEY", "s4")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "30")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.Env != "prod" {
		t.Errorf("Env = %q, want prod", cfg.Env)
	}
	if cfg.AccessSecret != "s1" || cfg.RefreshSecret != "s2" ||
		cfg.BoardSecret != "s3" || cfg.BoardRefreshSecret != "s4" {
		t.Error("token secrets not read from environment")
	}
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("AccessTokenTTLMinutes = %d, want 15", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 30 {
		t.Errorf("RefreshTokenTTLDays = %d, want 30", cfg.RefreshTokenTTLDays)
	}
}
