package store

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// ErrNoChallenge is returned when no pending challenge row matches. Callers
// must not report wrong-code and expired-code differently.
var ErrNoChallenge = errors.New("no matching challenge")

// Challenge is a pending 2FA code row together with the escrowed session
// token it releases on verification.
type Challenge struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Code        string    `json:"code"`
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Challenges persists pending 2FA codes in the two_fa_codes table. The store
// is the sole persistence authority: nothing is held in memory, and rows with
// no uniqueness constraint can coexist for one user.
type Challenges struct {
	rest *REST
}

func NewChallenges(rest *REST) *Challenges {
	return &Challenges{rest: rest}
}

// Insert persists a new challenge. created_at is assigned by the store.
func (c *Challenges) Insert(ctx context.Context, ch *Challenge) error {
	record := map[string]interface{}{
		"user_id":      ch.UserID,
		"email":        ch.Email,
		"code":         ch.Code,
		"access_token": ch.AccessToken,
		"expires_at":   ch.ExpiresAt.UTC().Format(time.RFC3339),
	}
	return c.rest.Insert(ctx, "two_fa_codes", record)
}

// Latest returns the most recently issued unexpired challenge matching
// (userID, code). Ties between reused codes resolve to the newest row.
func (c *Challenges) Latest(ctx context.Context, userID, code string, now time.Time) (*Challenge, error) {
	query := url.Values{
		"user_id":    {"eq." + userID},
		"code":       {"eq." + code},
		"expires_at": {"gt." + now.UTC().Format(time.RFC3339)},
		"order":      {"created_at.desc"},
		"limit":      {"1"},
	}
	var rows []Challenge
	if err := c.rest.Select(ctx, "two_fa_codes", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoChallenge
	}
	return &rows[0], nil
}

// DeleteForUser removes every challenge row for the user. This coarse sweep
// on verify success is the only invalidation mechanism; unconsumed rows
// otherwise expire passively in storage.
func (c *Challenges) DeleteForUser(ctx context.Context, userID string) error {
	return c.rest.Delete(ctx, "two_fa_codes", url.Values{"user_id": {"eq." + userID}})
}
