package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("MarketSignal", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("storage", config.Storage.Type).
		Msg("MarketSignal starting")
}
