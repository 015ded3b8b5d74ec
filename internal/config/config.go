package config

import (
	"flag"
	"fmt"
	"os"
)

// Config holds all runtime configuration for purist.
type Config struct {
	Listen        string
	MaxBodySize   int64
	DefaultFormat string
}

// Parse reads configuration from CLI flags with environment variable fallback.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("purist", flag.ContinueOnError)

	cfg := &Config{}

	fs.StringVar(&cfg.Listen, "listen", envOr("PURIST_LISTEN", ":8080"), "Listen address")
	maxBodySize := fs.String("max-body-size", envOr("PURIST_MAX_BODY_SIZE", "2MB"), "Max request body size (e.g. 2MB)")
	fs.StringVar(&cfg.DefaultFormat, "default-format", envOr("PURIST_DEFAULT_FORMAT", "standard"), "Default document format: standard or email")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	cfg.MaxBodySize, err = parseByteSize(*maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("parse max-body-size: %w", err)
	}

	switch cfg.DefaultFormat {
	case "standard", "email":
	default:
		return nil, fmt.Errorf("invalid default-format %q: must be standard or email", cfg.DefaultFormat)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// parseByteSize parses a human-readable byte size like "100MB", "5KB", "1GB".
func parseByteSize(s string) (int64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty size string")
	}

	// Find where the numeric part ends
	i := 0
	for i < len(s) && ((s[i] >= '0' && s[i] <= '9') || s[i] == '.') {
		i++
	}

	numStr := s[:i]
	unit := s[i:]

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	var multiplier int64
	switch unit {
	case "", "B":
		multiplier = 1
	case "KB", "kb":
		multiplier = 1024
	case "MB", "mb":
		multiplier = 1024 * 1024
	case "GB", "gb":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size unit %q in %q", unit, s)
	}

	return int64(num * float64(multiplier)), nil
}
