package provider

import (
	"github.com/clarity-ai/backend/internal/config"
	"go.uber.org/fx"
)

// Module provides the identity-provider client
var Module = fx.Module("provider",
	fx.Provide(
		func(cfg *config.Config) *Client { return NewClient(&cfg.Supabase) },
	),
)
