package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.Handler) *provider.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return provider.NewClient(&config.SupabaseConfig{URL: ts.URL, ServiceKey: "service-key"})
}

func TestPasswordGrant(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "service-key", r.Header.Get("apikey"))

		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@x.com", body.Email)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"user": map[string]interface{}{
				"id":    "u1",
				"email": "a@x.com",
				"user_metadata": map[string]string{
					"first_name": "Ada",
					"last_name":  "Lovelace",
				},
			},
		})
	}))

	session, err := client.PasswordGrant(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", session.AccessToken)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "Ada", session.User.Metadata.FirstName)
}

func TestPasswordGrantCollapsesRejections(t *testing.T) {
	// Every 4xx reads as invalid credentials, regardless of the upstream
	// reason.
	for _, status := range []int{400, 401, 403, 422} {
		client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Email not confirmed"})
		}))

		_, err := client.PasswordGrant(context.Background(), "a@x.com", "secret1")
		require.ErrorIs(t, err, provider.ErrInvalidCredentials, status)
		assert.NotContains(t, err.Error(), "confirmed", "upstream detail must not leak")
	}
}

func TestPasswordGrantUpstreamFailure(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "database unavailable"})
	}))

	_, err := client.PasswordGrant(context.Background(), "a@x.com", "secret1")
	var upstream *provider.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadGateway, upstream.Status)
	assert.Equal(t, "database unavailable", upstream.Message)
}

func TestCreateUser(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["email_confirm"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "u9", "email": body["email"]})
	}))

	user, err := client.CreateUser(context.Background(), "new@x.com", "secret9", "Grace", "Hopper")
	require.NoError(t, err)
	assert.Equal(t, "u9", user.ID)
}

func TestCreateUserDuplicate(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "A user with this email address has already been registered"})
	}))

	_, err := client.CreateUser(context.Background(), "dup@x.com", "secret9", "Grace", "Hopper")
	require.ErrorIs(t, err, provider.ErrUserExists)
}

func TestUpdatePassword(t *testing.T) {
	var gotPath, gotPassword string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotPassword = body["password"]
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1"})
	}))

	require.NoError(t, client.UpdatePassword(context.Background(), "u1", "newsecret"))
	assert.Equal(t, "/auth/v1/admin/users/u1", gotPath)
	assert.Equal(t, "newsecret", gotPassword)
}

func TestIntrospect(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@x.com"})
	}))

	user, err := client.Introspect(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}

func TestIntrospectRejection(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Introspect(context.Background(), "stale")
	require.ErrorIs(t, err, provider.ErrTokenRejected)
}

func TestIntrospectRetriesTransportFailure(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Kill the connection before any response bytes, which
			// surfaces as a transport error on the caller's side.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "u1", "email": "a@x.com"})
	}))

	user, err := client.Introspect(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, int32(2), calls.Load())
}
