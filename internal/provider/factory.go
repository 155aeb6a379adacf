package provider

import (
	"fmt"
	"strings"

	"echoes/internal/config"
)

// NewProvider instantiates the VideoProvider named by cfg.VideoProvider.
func NewProvider(cfg config.Config) (VideoProvider, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.VideoProvider))
	if driver == "" {
		driver = "runway"
	}

	switch driver {
	case "runway":
		return NewRunway(cfg)
	case "kling":
		return NewKling(cfg)
	default:
		return nil, fmt.Errorf("unsupported video provider: %s", cfg.VideoProvider)
	}
}
