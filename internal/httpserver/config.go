package httpserver

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr           = ":8080"
	defaultAllowedOrigin        = "http://localhost:3000"
	defaultTokenIssuer          = "podcraft"
	defaultTokenTTL             = 30 * 24 * time.Hour
	defaultSignupBonusCredits   = 100
	defaultCentsPerCredit       = 2
	defaultStepCostCredits      = 3
	defaultMaxProjectsPerUser   = 50
	defaultShutdownGracePeriod  = 5 * time.Second
	defaultAssetBaseURL         = "https://assets.podcraft.local"
	defaultRequestTimeoutPeriod = 30 * time.Second
)

// Config aggregates the runtime settings of the API server.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string

	TokenSigningKey string
	TokenIssuer     string
	TokenTTL        time.Duration

	SignupBonusCredits int64
	CentsPerCredit     int64

	ScriptCostCredits   int64
	TTSCostCredits      int64
	ImageCostCredits    int64
	VideoCostCredits    int64
	PlatformFeeCredits  int64
	MaxProjectsPerUser  int
	AssetBaseURL        string
	ShutdownGracePeriod time.Duration
	RequestTimeout      time.Duration
}

// Validate fills defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.TokenIssuer = defaultIfEmpty(cfg.TokenIssuer, defaultTokenIssuer)
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.SignupBonusCredits < 0 {
		return fmt.Errorf("signup bonus must not be negative")
	}
	if cfg.SignupBonusCredits == 0 {
		cfg.SignupBonusCredits = defaultSignupBonusCredits
	}
	if cfg.CentsPerCredit <= 0 {
		cfg.CentsPerCredit = defaultCentsPerCredit
	}
	for _, cost := range []*int64{
		&cfg.ScriptCostCredits,
		&cfg.TTSCostCredits,
		&cfg.ImageCostCredits,
		&cfg.VideoCostCredits,
		&cfg.PlatformFeeCredits,
	} {
		if *cost < 0 {
			return fmt.Errorf("operation costs must not be negative")
		}
		if *cost == 0 {
			*cost = defaultStepCostCredits
		}
	}
	if cfg.MaxProjectsPerUser <= 0 {
		cfg.MaxProjectsPerUser = defaultMaxProjectsPerUser
	}
	cfg.AssetBaseURL = defaultIfEmpty(cfg.AssetBaseURL, defaultAssetBaseURL)
	if cfg.ShutdownGracePeriod <= 0 {
		cfg.ShutdownGracePeriod = defaultShutdownGracePeriod
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeoutPeriod
	}
	if strings.TrimSpace(cfg.TokenSigningKey) == "" {
		return fmt.Errorf("token signing key is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
