package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	DatabaseDSN           string
	Env                   string
	AccessSecret          string
	RefreshSecret         string
	BoardSecret           string
	BoardRefreshSecret    string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load 从 .env 和环境变量读取配置。四种 token 各自独立的密钥。
func Load() Config {
	_ = godotenv.Load()

	accessTTLStr := getenv("ACCESS_TOKEN_TTL_MINUTES", "60")
	refreshTTLDaysStr := getenv("REFRESH_TOKEN_TTL_DAYS", "7")
	accessTTL, _ := strconv.Atoi(accessTTLStr)
	refreshTTL, _ := strconv.Atoi(refreshTTLDaysStr)
	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=stickyboard port=5432 sslmode=disable TimeZone=UTC"),
		Env:                   getenv("APP_ENV", "dev"),
		AccessSecret:          getenv("SECRET_KEY", "dev-secret-change-me"),
		RefreshSecret:         getenv("REFRESH_SECRET_KEY", "dev-refresh-secret-change-me"),
		BoardSecret:           getenv("BOARD_SECRET_KEY", "dev-board-secret-change-me"),
		BoardRefreshSecret:    getenv("BOARD_REFRESH_SECRET_KEY", "dev-board-refresh-secret-change-me"),
		AccessTokenTTLMinutes: accessTTL,
		RefreshTokenTTLDays:   refreshTTL,
	}
}
