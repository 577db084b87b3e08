package gateway

import (
	"errors"
	"fmt"

	"github.com/nulzo/ai-sdk-gateway/internal/cli"
	"github.com/nulzo/ai-sdk-gateway/internal/config"
	"go.uber.org/zap"
)

// Bootstrap initializes the manager from the ai config section. A missing
// or unusable configuration is logged and leaves the manager Uninitialized;
// it never stops the host from starting.
func Bootstrap(m *Manager, cfg config.AIConfig, log *zap.Logger) bool {
	if cfg.APIKey == "" {
		log.Warn(fmt.Sprintf("%s %s",
			cli.WarningSign(),
			cli.Stylize("AI API key not configured, generation endpoints will reject requests", cli.Yellow),
		))
		return false
	}

	err := m.Initialize(Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey,
		ChatModel: cfg.ChatModel,
		BaseURL:   cfg.BaseURL,
	})

	var cfgErr *ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		log.Warn(fmt.Sprintf("%s %s", cli.WarningSign(), cli.Stylize(cfgErr.Error(), cli.Yellow)))
		return false
	case err != nil:
		log.Error("Failed to initialize provider", zap.String("provider", cfg.Provider), zap.Error(err))
		return false
	}

	log.Info(fmt.Sprintf("%s %s %s",
		cli.CheckMark(),
		cli.Stylize("AI SDK initialized", cli.Green),
		cli.Stylize(string(m.Model()), cli.Black),
	), zap.String("provider", cfg.Provider))
	return true
}
