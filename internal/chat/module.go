package chat

import (
	"github.com/clarity-ai/backend/internal/config"
	"go.uber.org/fx"
)

// Module provides the chat proxy dependencies
var Module = fx.Module("chat",
	fx.Provide(
		func(cfg *config.Config) *Completer { return NewCompleter(&cfg.Mistral) },
		NewHandler,
	),
)
