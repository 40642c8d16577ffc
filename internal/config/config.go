package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                   int      `env:"PORT" envDefault:"8080"`
	DatabaseURL            string   `env:"DATABASE_URL,required"`
	RedisURL               string   `env:"REDIS_URL,required"`
	LogLevel               string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment            string   `env:"ENVIRONMENT" envDefault:"development"`
	RateLimitPerMin        int      `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	AllowedOrigins         []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	TimerDurationSeconds   int      `env:"TIMER_DURATION_SECONDS" envDefault:"180"`
	TimerWarningSeconds    int      `env:"TIMER_WARNING_SECONDS" envDefault:"30"`
	DisconnectGraceSeconds int      `env:"DISCONNECT_GRACE_SECONDS" envDefault:"30"`
	StreakThreshold        int      `env:"STREAK_THRESHOLD" envDefault:"3"`
	ParticipationPoints    int      `env:"PARTICIPATION_POINTS" envDefault:"10"`
	ExtensionPoints        int      `env:"EXTENSION_POINTS" envDefault:"15"`
	StreakBonusPoints      int      `env:"STREAK_BONUS_POINTS" envDefault:"10"`
	FriendsForeverPoints   int      `env:"FRIENDS_FOREVER_POINTS" envDefault:"50"`
	RatingPointsPerStar    int      `env:"RATING_POINTS_PER_STAR" envDefault:"5"`
	LeaderboardSize        int      `env:"LEADERBOARD_SIZE" envDefault:"10"`
}

func (c *Config) TimerDuration() time.Duration {
	return time.Duration(c.TimerDurationSeconds) * time.Second
}

func (c *Config) WarningLead() time.Duration {
	return time.Duration(c.TimerWarningSeconds) * time.Second
}

func (c *Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceSeconds) * time.Second
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.TimerDurationSeconds <= 0 {
		return fmt.Errorf("TIMER_DURATION_SECONDS must be positive")
	}
	if c.TimerWarningSeconds < 0 || c.TimerWarningSeconds >= c.TimerDurationSeconds {
		return fmt.Errorf("TIMER_WARNING_SECONDS must be between 0 and TIMER_DURATION_SECONDS")
	}
	if c.DisconnectGraceSeconds <= 0 {
		return fmt.Errorf("DISCONNECT_GRACE_SECONDS must be positive")
	}
	if c.StreakThreshold < 1 {
		return fmt.Errorf("STREAK_THRESHOLD must be at least 1")
	}
	if c.LeaderboardSize < 1 || c.LeaderboardSize > 100 {
		return fmt.Errorf("LEADERBOARD_SIZE must be between 1 and 100")
	}

	if c.IsProduction() && len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if len(c.AllowedOrigins) == 0 {
		log.Warn().Msg("ALLOWED_ORIGINS is empty: websocket upgrades only accept same-origin requests")
	}
	if strings.HasPrefix(c.RedisURL, "redis://") && !strings.Contains(c.RedisURL, "localhost") {
		log.Warn().Msg("REDIS_URL uses redis:// (not TLS): consider using rediss://")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
