package notifier

import (
	"github.com/clarity-ai/backend/internal/config"
	"go.uber.org/fx"
)

// Module provides the notification client
var Module = fx.Module("notifier",
	fx.Provide(
		func(cfg *config.Config) *Client { return NewClient(&cfg.EmailJS) },
	),
)
