package store

import (
	"context"
	"errors"
	"net/url"
)

// ErrNoProfile is returned when no profile row matches. A valid identity can
// exist without one; callers decide whether that is a 404 or a fallback.
var ErrNoProfile = errors.New("no profile row")

// Profile is the users-table row for an account. ID matches the identity
// provider's subject claim.
type Profile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	TwoFAEnabled bool   `json:"two_fa_enabled"`
}

// Profiles reads and narrowly patches the users table.
type Profiles struct {
	rest *REST
}

func NewProfiles(rest *REST) *Profiles {
	return &Profiles{rest: rest}
}

func (p *Profiles) GetByID(ctx context.Context, id string) (*Profile, error) {
	return p.getOne(ctx, url.Values{"id": {"eq." + id}, "select": {"*"}})
}

func (p *Profiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	return p.getOne(ctx, url.Values{"email": {"eq." + email}, "select": {"*"}})
}

func (p *Profiles) getOne(ctx context.Context, query url.Values) (*Profile, error) {
	var rows []Profile
	if err := p.rest.Select(ctx, "users", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoProfile
	}
	return &rows[0], nil
}

// Insert creates the profile row for a freshly provisioned account.
func (p *Profiles) Insert(ctx context.Context, profile *Profile) error {
	return p.rest.Insert(ctx, "users", profile)
}

// Patch applies a partial update to the row with the given id.
func (p *Profiles) Patch(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return p.rest.Patch(ctx, "users", url.Values{"id": {"eq." + id}}, updates)
}
