package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clarity-ai/backend/internal/auth"
	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/notifier"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/clarity-ai/backend/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUpstream emulates the GoTrue auth API and the PostgREST tables the
// service touches.
type fakeUpstream struct {
	t  *testing.T
	mu sync.Mutex

	accounts   map[string]*fakeAccount // keyed by email
	profiles   map[string]store.Profile
	challenges []store.Challenge
	sessions   map[string]provider.User // token -> user

	introspectDown bool
	seq            int
	insertClock    time.Time
}

type fakeAccount struct {
	ID       string
	Email    string
	Password string
	Meta     provider.Metadata
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	return &fakeUpstream{
		t:           t,
		accounts:    map[string]*fakeAccount{},
		profiles:    map[string]store.Profile{},
		sessions:    map[string]provider.User{},
		insertClock: time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
	}
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", f.handleToken)
	mux.HandleFunc("/auth/v1/user", f.handleIntrospect)
	mux.HandleFunc("/auth/v1/admin/users", f.handleAdminCreate)
	mux.HandleFunc("/auth/v1/admin/users/", f.handleAdminUpdate)
	mux.HandleFunc("/rest/v1/users", f.handleProfiles)
	mux.HandleFunc("/rest/v1/two_fa_codes", f.handleChallenges)
	return mux
}

func (f *fakeUpstream) user(acc *fakeAccount) provider.User {
	return provider.User{ID: acc.ID, Email: acc.Email, Metadata: acc.Meta}
}

func (f *fakeUpstream) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	require.Equal(f.t, "password", r.URL.Query().Get("grant_type"))
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	acc, ok := f.accounts[body.Email]
	if !ok || acc.Password != body.Password {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
		return
	}

	f.seq++
	token := "tok-" + strconv.Itoa(f.seq)
	f.sessions[token] = f.user(acc)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": token,
		"user":         f.user(acc),
	})
}

func (f *fakeUpstream) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.introspectDown {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user, ok := f.sessions[token]
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(user)
}

func (f *fakeUpstream) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Email    string            `json:"email"`
		Password string            `json:"password"`
		Metadata provider.Metadata `json:"user_metadata"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	if _, ok := f.accounts[body.Email]; ok {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "A user with this email address has already been registered"})
		return
	}

	f.seq++
	acc := &fakeAccount{
		ID:       "user-" + strconv.Itoa(f.seq),
		Email:    body.Email,
		Password: body.Password,
		Meta:     body.Metadata,
	}
	f.accounts[body.Email] = acc
	_ = json.NewEncoder(w).Encode(f.user(acc))
}

func (f *fakeUpstream) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/auth/v1/admin/users/")
	var body struct {
		Password string `json:"password"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))

	for _, acc := range f.accounts {
		if acc.ID == id {
			acc.Password = body.Password
			_ = json.NewEncoder(w).Encode(f.user(acc))
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func eqFilter(q string) (string, bool) {
	if strings.HasPrefix(q, "eq.") {
		return strings.TrimPrefix(q, "eq."), true
	}
	return "", false
}

func (f *fakeUpstream) handleProfiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		rows := []store.Profile{}
		for _, p := range f.profiles {
			if v, ok := eqFilter(q.Get("id")); ok && p.ID != v {
				continue
			}
			if v, ok := eqFilter(q.Get("email")); ok && p.Email != v {
				continue
			}
			rows = append(rows, p)
		}
		_ = json.NewEncoder(w).Encode(rows)

	case http.MethodPost:
		var p store.Profile
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&p))
		f.profiles[p.ID] = p
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		id, _ := eqFilter(q.Get("id"))
		var updates map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&updates))
		p, ok := f.profiles[id]
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if v, ok := updates["first_name"].(string); ok {
			p.FirstName = v
		}
		if v, ok := updates["last_name"].(string); ok {
			p.LastName = v
		}
		if v, ok := updates["two_fa_enabled"].(bool); ok {
			p.TwoFAEnabled = v
		}
		f.profiles[id] = p
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeUpstream) handleChallenges(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		rows := []store.Challenge{}
		cutoff := time.Time{}
		if v := q.Get("expires_at"); strings.HasPrefix(v, "gt.") {
			parsed, err := time.Parse(time.RFC3339, strings.TrimPrefix(v, "gt."))
			require.NoError(f.t, err)
			cutoff = parsed
		}
		for _, ch := range f.challenges {
			if v, ok := eqFilter(q.Get("user_id")); ok && ch.UserID != v {
				continue
			}
			if v, ok := eqFilter(q.Get("code")); ok && ch.Code != v {
				continue
			}
			if !cutoff.IsZero() && !ch.ExpiresAt.After(cutoff) {
				continue
			}
			rows = append(rows, ch)
		}
		if q.Get("order") == "created_at.desc" {
			sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil && len(rows) > limit {
			rows = rows[:limit]
		}
		_ = json.NewEncoder(w).Encode(rows)

	case http.MethodPost:
		var body struct {
			UserID      string `json:"user_id"`
			Email       string `json:"email"`
			Code        string `json:"code"`
			AccessToken string `json:"access_token"`
			ExpiresAt   string `json:"expires_at"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		expires, err := time.Parse(time.RFC3339, body.ExpiresAt)
		require.NoError(f.t, err)
		f.insertClock = f.insertClock.Add(time.Second)
		f.challenges = append(f.challenges, store.Challenge{
			UserID:      body.UserID,
			Email:       body.Email,
			Code:        body.Code,
			AccessToken: body.AccessToken,
			CreatedAt:   f.insertClock,
			ExpiresAt:   expires,
		})
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		id, _ := eqFilter(q.Get("user_id"))
		kept := f.challenges[:0]
		for _, ch := range f.challenges {
			if ch.UserID != id {
				kept = append(kept, ch)
			}
		}
		f.challenges = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeUpstream) challengeRows(userID string) []store.Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := []store.Challenge{}
	for _, ch := range f.challenges {
		if ch.UserID == userID {
			rows = append(rows, ch)
		}
	}
	return rows
}

func (f *fakeUpstream) addAccount(id, email, password string, meta provider.Metadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = &fakeAccount{ID: id, Email: email, Password: password, Meta: meta}
}

func (f *fakeUpstream) addProfile(p store.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.ID] = p
}

func (f *fakeUpstream) password(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[email].Password
}

type emailRecord struct {
	ToEmail string
	ToName  string
	Code    string
}

type fixture struct {
	upstream *fakeUpstream
	svc      *auth.Service
	emails   chan emailRecord

	mu  sync.Mutex
	now time.Time

	emailStatus int
}

func newFixture(t *testing.T, options ...auth.Option) *fixture {
	t.Helper()

	f := &fixture{
		upstream:    newFakeUpstream(t),
		emails:      make(chan emailRecord, 16),
		now:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		emailStatus: http.StatusOK,
	}

	ts := httptest.NewServer(f.upstream.handler())
	t.Cleanup(ts.Close)

	emailTS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TemplateParams struct {
				ToEmail string `json:"to_email"`
				ToName  string `json:"to_name"`
				Code    string `json:"code"`
			} `json:"template_params"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		select {
		case f.emails <- emailRecord{
			ToEmail: body.TemplateParams.ToEmail,
			ToName:  body.TemplateParams.ToName,
			Code:    body.TemplateParams.Code,
		}:
		default:
		}
		w.WriteHeader(f.emailStatus)
	}))
	t.Cleanup(emailTS.Close)

	sbCfg := config.SupabaseConfig{URL: ts.URL, ServiceKey: "service-key"}
	rest := store.NewREST(&sbCfg)

	opts := append([]auth.Option{auth.WithNow(f.currentTime)}, options...)
	f.svc = auth.NewService(
		provider.NewClient(&sbCfg),
		store.NewProfiles(rest),
		store.NewChallenges(rest),
		notifier.NewClient(&config.EmailJSConfig{
			Endpoint:   emailTS.URL,
			ServiceID:  "svc",
			TemplateID: "tpl",
			PublicKey:  "pub",
			PrivateKey: "priv",
		}),
		opts...,
	)
	return f
}

func (f *fixture) currentTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) awaitEmail(t *testing.T) emailRecord {
	t.Helper()
	select {
	case rec := <-f.emails:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("no email dispatched")
		return emailRecord{}
	}
}

func (f *fixture) seedUser(id, email, password string, twoFA bool) {
	f.upstream.addAccount(id, email, password, provider.Metadata{FirstName: "Ada", LastName: "Lovelace"})
	f.upstream.addProfile(store.Profile{
		ID:           id,
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		TwoFAEnabled: twoFA,
	})
}

func TestLoginWithout2FA(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)

	result, err := f.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	assert.False(t, result.Requires2FA)
	assert.NotEmpty(t, result.SessionToken)
	assert.Equal(t, "u1", result.Profile.ID)
	assert.Equal(t, "a@x.com", result.Profile.Email)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)

	_, err := f.svc.Login(context.Background(), "a@x.com", "wrong")
	require.ErrorIs(t, err, provider.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@x.com", "secret1")
	require.ErrorIs(t, err, provider.ErrInvalidCredentials)
}

func TestLoginSynthesizesMissingProfile(t *testing.T) {
	f := newFixture(t)
	// Account exists upstream but has no profile row.
	f.upstream.addAccount("u9", "new@x.com", "secret9", provider.Metadata{FirstName: "Grace", LastName: "Hopper"})

	result, err := f.svc.Login(context.Background(), "new@x.com", "secret9")
	require.NoError(t, err)

	assert.Equal(t, "u9", result.Profile.ID)
	assert.Equal(t, "Grace", result.Profile.FirstName)
	assert.Equal(t, "Hopper", result.Profile.LastName)
	assert.False(t, result.Profile.TwoFAEnabled)
	assert.NotEmpty(t, result.SessionToken)
}

func TestLoginWith2FAEscrowsToken(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	result, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)

	assert.True(t, result.Requires2FA)
	assert.Empty(t, result.SessionToken, "the escrowed token must never leak into the first-factor response")
	assert.Nil(t, result.Profile)

	rows := f.upstream.challengeRows("u2")
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0].AccessToken)
	assert.Equal(t, "b@x.com", rows[0].Email)
	assert.Equal(t, f.currentTime().Add(10*time.Minute), rows[0].ExpiresAt.UTC())

	rec := f.awaitEmail(t)
	assert.Equal(t, "b@x.com", rec.ToEmail)
	assert.Equal(t, "Ada", rec.ToName)
	assert.Equal(t, rows[0].Code, rec.Code)
}

func TestChallengeCodeFormat(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	codePattern := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 25; i++ {
		_, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
		require.NoError(t, err)
	}

	for _, row := range f.upstream.challengeRows("u2") {
		require.Regexp(t, codePattern, row.Code)
		n, err := strconv.Atoi(row.Code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestVerifyCodeConsumesChallengeOnce(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	_, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)

	rows := f.upstream.challengeRows("u2")
	require.Len(t, rows, 1)
	code, escrowed := rows[0].Code, rows[0].AccessToken

	result, err := f.svc.VerifyCode(context.Background(), "b@x.com", code)
	require.NoError(t, err)
	assert.Equal(t, escrowed, result.SessionToken)
	assert.Equal(t, "u2", result.Profile.ID)

	// Consumption is single-use: replaying the same code fails identically
	// to a wrong code.
	_, err = f.svc.VerifyCode(context.Background(), "b@x.com", code)
	require.ErrorIs(t, err, auth.ErrBadCode)
}

func TestVerifyCodeExpiredLooksLikeWrongCode(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	_, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)
	code := f.upstream.challengeRows("u2")[0].Code

	f.advance(11 * time.Minute)

	_, expiredErr := f.svc.VerifyCode(context.Background(), "b@x.com", code)
	_, wrongErr := f.svc.VerifyCode(context.Background(), "b@x.com", "000000")
	require.ErrorIs(t, expiredErr, auth.ErrBadCode)
	require.ErrorIs(t, wrongErr, auth.ErrBadCode)
	assert.Equal(t, wrongErr.Error(), expiredErr.Error())
}

func TestVerifyCodeUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyCode(context.Background(), "ghost@x.com", "123456")
	require.ErrorIs(t, err, store.ErrNoProfile)
}

func TestVerifySweepsAllPendingChallenges(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	// Two concurrent logins leave two pending challenges.
	_, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)

	rows := f.upstream.challengeRows("u2")
	require.Len(t, rows, 2)

	_, err = f.svc.VerifyCode(context.Background(), "b@x.com", rows[1].Code)
	require.NoError(t, err)

	// The sweep destroyed the unrelated pending challenge too.
	assert.Empty(t, f.upstream.challengeRows("u2"))
	_, err = f.svc.VerifyCode(context.Background(), "b@x.com", rows[0].Code)
	require.ErrorIs(t, err, auth.ErrBadCode)
}

func TestVerifyPrefersNewestChallenge(t *testing.T) {
	f := newFixture(t, auth.WithCodeGenerator(func() (string, error) {
		return "482913", nil
	}))
	f.seedUser("u2", "b@x.com", "secret2", true)

	_, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)

	rows := f.upstream.challengeRows("u2")
	require.Len(t, rows, 2)
	newest := rows[1]
	require.True(t, newest.CreatedAt.After(rows[0].CreatedAt))

	result, err := f.svc.VerifyCode(context.Background(), "b@x.com", "482913")
	require.NoError(t, err)
	assert.Equal(t, newest.AccessToken, result.SessionToken)
}

func TestSendCodeByEmail(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u2", "b@x.com", "secret2", true)

	err := f.svc.SendCode(context.Background(), "b@x.com", "escrow-token")
	require.NoError(t, err)

	rows := f.upstream.challengeRows("u2")
	require.Len(t, rows, 1)
	assert.Equal(t, "escrow-token", rows[0].AccessToken)

	err = f.svc.SendCode(context.Background(), "ghost@x.com", "")
	require.ErrorIs(t, err, store.ErrNoProfile)
}

func TestNotificationFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	f.emailStatus = http.StatusInternalServerError
	f.seedUser("u2", "b@x.com", "secret2", true)

	result, err := f.svc.Login(context.Background(), "b@x.com", "secret2")
	require.NoError(t, err)
	assert.True(t, result.Requires2FA)

	// Delivery was attempted and failed, but the challenge is pending.
	f.awaitEmail(t)
	assert.Len(t, f.upstream.challengeRows("u2"), 1)
}

func TestNotificationNameFallback(t *testing.T) {
	f := newFixture(t)
	f.upstream.addAccount("u3", "c@x.com", "secret3", provider.Metadata{})
	f.upstream.addProfile(store.Profile{ID: "u3", Email: "c@x.com", TwoFAEnabled: true})

	_, err := f.svc.Login(context.Background(), "c@x.com", "secret3")
	require.NoError(t, err)

	rec := f.awaitEmail(t)
	assert.Equal(t, "User", rec.ToName)
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SignUp(context.Background(), "Alan", "Turing", "alan@x.com", "secret7")
	require.NoError(t, err)

	// The account exists and the profile row was inserted alongside it.
	result, err := f.svc.Login(context.Background(), "alan@x.com", "secret7")
	require.NoError(t, err)
	assert.Equal(t, "Alan", result.Profile.FirstName)
	assert.Equal(t, "Turing", result.Profile.LastName)

	err = f.svc.SignUp(context.Background(), "Alan", "Turing", "alan@x.com", "secret7")
	require.ErrorIs(t, err, provider.ErrUserExists)
}

func TestSignUpPasswordTooShort(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SignUp(context.Background(), "Alan", "Turing", "alan@x.com", "short")
	require.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = f.svc.Login(context.Background(), "alan@x.com", "short")
	require.ErrorIs(t, err, provider.ErrInvalidCredentials, "no account may be created for a rejected password")
}

func TestIdentifyLiveCheckFirst(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)

	result, err := f.svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	// The live path trusts the provider even for an opaque token.
	identity, err := f.svc.Identify(context.Background(), result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "a@x.com", identity.Email)
}

func TestIdentifyFallsBackWhenProviderDown(t *testing.T) {
	f := newFixture(t)
	f.upstream.introspectDown = true

	now := f.currentTime()
	valid := signFallbackToken(t, jwt.MapClaims{"sub": "u7", "email": "g@x.com", "exp": now.Add(time.Hour).Unix()})
	expired := signFallbackToken(t, jwt.MapClaims{"sub": "u7", "exp": now.Add(-time.Hour).Unix()})

	identity, err := f.svc.Identify(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, "u7", identity.ID)
	assert.Equal(t, "g@x.com", identity.Email)

	// An expired claim is rejected even with the live check unreachable.
	_, err = f.svc.Identify(context.Background(), expired)
	require.ErrorIs(t, err, auth.ErrTokenExpired)

	// An opaque token has no offline representation at all.
	_, err = f.svc.Identify(context.Background(), "tok-1")
	require.ErrorIs(t, err, auth.ErrMalformedToken)
}

func signFallbackToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return signed
}

func TestChangePasswordGuard(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)
	identity := &auth.Identity{ID: "u1", Email: "a@x.com"}

	err := f.svc.UpdateUser(context.Background(), identity, auth.UpdateParams{
		CurrentPassword: "wrong",
		NewPassword:     "newsecret",
		Email:           "a@x.com",
	})
	require.ErrorIs(t, err, auth.ErrWrongPassword)
	assert.Equal(t, "secret1", f.upstream.password("a@x.com"), "a failed guard must not touch the credential")

	err = f.svc.UpdateUser(context.Background(), identity, auth.UpdateParams{
		CurrentPassword: "secret1",
		NewPassword:     "newsecret",
		Email:           "a@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "newsecret", f.upstream.password("a@x.com"))
}

func TestChangePasswordMinimumLength(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)

	err := f.svc.UpdateUser(context.Background(), &auth.Identity{ID: "u1"}, auth.UpdateParams{
		CurrentPassword: "secret1",
		NewPassword:     "tiny",
		Email:           "a@x.com",
	})
	require.ErrorIs(t, err, auth.ErrPasswordTooShort)
	assert.Equal(t, "secret1", f.upstream.password("a@x.com"))
}

func TestUpdateProfileFields(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "a@x.com", "secret1", false)

	first := "Augusta"
	twoFA := true
	err := f.svc.UpdateUser(context.Background(), &auth.Identity{ID: "u1"}, auth.UpdateParams{
		FirstName:    &first,
		TwoFAEnabled: &twoFA,
	})
	require.NoError(t, err)

	profile, err := f.svc.CurrentProfile(context.Background(), &auth.Identity{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", profile.FirstName)
	assert.Equal(t, "Lovelace", profile.LastName, "untouched fields stay as they were")
	assert.True(t, profile.TwoFAEnabled)
}
