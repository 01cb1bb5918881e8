// Package auth holds the one part of the service with real state-machine
// logic: credential verification, the 2FA challenge lifecycle, session-token
// validation, and the password-change guard.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/clarity-ai/backend/internal/logger"
	"github.com/clarity-ai/backend/internal/notifier"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/clarity-ai/backend/internal/store"
	"go.uber.org/zap"
)

const (
	challengeTTL = 10 * time.Minute

	codeMin = 100000
	codeMax = 999999

	// MinPasswordLength is enforced centrally for signup and password change.
	MinPasswordLength = 6
)

var (
	// ErrBadCode is returned for a wrong and for an expired 2FA code alike,
	// so clients cannot probe validity windows.
	ErrBadCode = errors.New("invalid or expired code")

	// ErrWrongPassword is returned when the current password fails
	// re-verification before a credential change.
	ErrWrongPassword = errors.New("current password is incorrect")

	// ErrPasswordTooShort is returned when a new password is under the
	// minimum length.
	ErrPasswordTooShort = errors.New("password too short")
)

// LoginResult is the outcome of a successful first or second factor. For a
// 2FA-enabled account the first factor sets Requires2FA and carries no
// token: the token stays escrowed until VerifyCode releases it.
type LoginResult struct {
	SessionToken string
	Profile      *store.Profile
	Requires2FA  bool
}

// Service coordinates the identity provider, the profile and challenge
// stores, and the notification channel. It holds no per-request state beyond
// the in-process verify locks.
type Service struct {
	provider   *provider.Client
	profiles   *store.Profiles
	challenges *store.Challenges
	notifier   *notifier.Client

	now     func() time.Time
	genCode func() (string, error)

	// verifyLocks serializes VerifyCode per user so at most one caller can
	// claim a still-valid challenge row before the delete lands. In-process
	// only; a multi-instance deployment would need a conditional delete.
	verifyLocks sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithNow sets the time source (primarily for testing).
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator sets the challenge-code source (primarily for testing).
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.genCode = gen }
}

func NewService(p *provider.Client, profiles *store.Profiles, challenges *store.Challenges, n *notifier.Client, options ...Option) *Service {
	s := &Service{
		provider:   p,
		profiles:   profiles,
		challenges: challenges,
		notifier:   n,
		now:        time.Now,
		genCode:    generateCode,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// generateCode draws a 6-digit code uniformly over [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return strconv.FormatInt(codeMin+n.Int64(), 10), nil
}

// ValidatePassword is the single place the minimum length is enforced.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Login exchanges credentials for a session. When the resolved profile has
// the second factor enabled, the token is escrowed behind a new challenge
// and the result only signals Requires2FA.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	session, err := s.provider.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}

	profile, err := s.resolveProfile(ctx, &session.User)
	if err != nil {
		return nil, err
	}

	if profile.TwoFAEnabled {
		if err := s.issueChallenge(ctx, profile, session.AccessToken); err != nil {
			return nil, err
		}
		return &LoginResult{Requires2FA: true}, nil
	}

	return &LoginResult{SessionToken: session.AccessToken, Profile: profile}, nil
}

// resolveProfile merges the profile row with identity-claim fallbacks so
// downstream callers always get a profile-shaped value. Accounts can exist
// without a row (fresh signups, missing rows); those synthesize one from the
// claims, with the second factor off.
func (s *Service) resolveProfile(ctx context.Context, user *provider.User) (*store.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, user.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNoProfile) {
		return nil, err
	}
	return &store.Profile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.Metadata.FirstName,
		LastName:  user.Metadata.LastName,
	}, nil
}

// issueChallenge persists a fresh challenge and triggers delivery. Delivery
// runs detached and its outcome is discarded: the pending challenge, not the
// email, is what the verify step checks. Concurrent logins may leave several
// challenges pending; a later successful verify sweeps them all.
func (s *Service) issueChallenge(ctx context.Context, profile *store.Profile, escrowToken string) error {
	code, err := s.genCode()
	if err != nil {
		return err
	}

	now := s.now()
	challenge := &store.Challenge{
		UserID:      profile.ID,
		Email:       profile.Email,
		Code:        code,
		AccessToken: escrowToken,
		ExpiresAt:   now.Add(challengeTTL),
	}
	if err := s.challenges.Insert(ctx, challenge); err != nil {
		return err
	}

	name := profile.FirstName
	if name == "" {
		name = "User"
	}
	s.notifier.DispatchCode(profile.Email, name, code)

	logger.Debug("issued 2FA challenge", zap.String("user_id", profile.ID))
	return nil
}

// SendCode issues a challenge for the profile matching email, escrowing an
// externally supplied session token (possibly empty, for logins that
// completed before 2FA was enabled on the account).
func (s *Service) SendCode(ctx context.Context, email, escrowToken string) error {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.issueChallenge(ctx, profile, escrowToken)
}

// VerifyCode consumes the most recently issued matching challenge and
// releases its escrowed session token. On success every pending challenge
// for the user is deleted, not just the matched row.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*LoginResult, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	lock := s.userLock(profile.ID)
	lock.Lock()
	defer lock.Unlock()

	challenge, err := s.challenges.Latest(ctx, profile.ID, code, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNoChallenge) {
			return nil, ErrBadCode
		}
		return nil, err
	}

	if err := s.challenges.DeleteForUser(ctx, profile.ID); err != nil {
		return nil, err
	}

	return &LoginResult{SessionToken: challenge.AccessToken, Profile: profile}, nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	lock, _ := s.verifyLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// SignUp provisions the account with the provider and inserts its profile
// row.
func (s *Service) SignUp(ctx context.Context, firstName, lastName, email, password string) error {
	if err := ValidatePassword(password); err != nil {
		return err
	}

	user, err := s.provider.CreateUser(ctx, email, password, firstName, lastName)
	if err != nil {
		return err
	}

	return s.profiles.Insert(ctx, &store.Profile{
		ID:        user.ID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	})
}

// Identify validates a bearer token. The live introspection runs first, so
// provider-side revocation is caught while the provider is reachable; any
// failure there degrades to the offline decode, which keeps already-issued,
// structurally valid tokens usable through provider outages.
func (s *Service) Identify(ctx context.Context, token string) (*Identity, error) {
	user, err := s.provider.Introspect(ctx, token)
	if err == nil {
		return &Identity{ID: user.ID, Email: user.Email}, nil
	}
	logger.Debug("introspection unavailable, falling back to token decode", zap.Error(err))

	return DecodeClaimsUnverified(token, s.now())
}

// CurrentProfile returns the profile row for an identity, or ErrNoProfile.
func (s *Service) CurrentProfile(ctx context.Context, identity *Identity) (*store.Profile, error) {
	return s.profiles.GetByID(ctx, identity.ID)
}

// UpdateParams carries a partial profile update. Nil pointer fields are
// left untouched. A password change additionally requires the current
// password and the account email.
type UpdateParams struct {
	FirstName    *string
	LastName     *string
	TwoFAEnabled *bool

	CurrentPassword string
	NewPassword     string
	Email           string
}

// UpdateUser patches profile fields and, when requested, changes the
// password behind the re-authentication guard.
func (s *Service) UpdateUser(ctx context.Context, identity *Identity, params UpdateParams) error {
	updates := map[string]interface{}{}
	if params.FirstName != nil {
		updates["first_name"] = *params.FirstName
	}
	if params.LastName != nil {
		updates["last_name"] = *params.LastName
	}
	if params.TwoFAEnabled != nil {
		updates["two_fa_enabled"] = *params.TwoFAEnabled
	}
	if len(updates) > 0 {
		if err := s.profiles.Patch(ctx, identity.ID, updates); err != nil {
			return err
		}
	}

	if params.NewPassword != "" && params.CurrentPassword != "" && params.Email != "" {
		return s.changePassword(ctx, identity, params.Email, params.CurrentPassword, params.NewPassword)
	}
	return nil
}

// changePassword re-proves the current password before touching the
// credential. Identify's fallback path trusts locally-unverified claims, so
// a bearer token alone must never authorize a credential change.
func (s *Service) changePassword(ctx context.Context, identity *Identity, email, currentPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	if _, err := s.provider.PasswordGrant(ctx, email, currentPassword); err != nil {
		if errors.Is(err, provider.ErrInvalidCredentials) {
			return ErrWrongPassword
		}
		return err
	}

	return s.provider.UpdatePassword(ctx, identity.ID, newPassword)
}
