package auth

import (
	"github.com/clarity-ai/backend/internal/notifier"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/clarity-ai/backend/internal/store"
	"go.uber.org/fx"
)

// ServiceParams collects the service dependencies for injection.
type ServiceParams struct {
	fx.In

	Provider   *provider.Client
	Profiles   *store.Profiles
	Challenges *store.Challenges
	Notifier   *notifier.Client
}

// Module provides the auth service
var Module = fx.Module("auth",
	fx.Provide(
		func(p ServiceParams) *Service {
			return NewService(p.Provider, p.Profiles, p.Challenges, p.Notifier)
		},
	),
)
