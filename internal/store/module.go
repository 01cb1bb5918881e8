package store

import (
	"github.com/clarity-ai/backend/internal/config"
	"go.uber.org/fx"
)

// Module provides the records-store clients
var Module = fx.Module("store",
	fx.Provide(
		func(cfg *config.Config) *REST { return NewREST(&cfg.Supabase) },
		NewProfiles,
		NewChallenges,
		NewConversations,
		NewMessages,
	),
)
