package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instihub/chatgate/internal/token"
)

// fakeStore records calls so the two-phase ordering can be asserted.
type fakeStore struct {
	calls []string

	userID      string
	sessionID   string
	storedHash  string
	seenSeed    string
	seenProfile *Profile

	upsertErr  error
	sessionErr error
	hashErr    error
}

func (f *fakeStore) UpsertUser(_ context.Context, profile *Profile, seed string) (string, error) {
	f.calls = append(f.calls, "upsert")
	f.seenProfile = profile
	f.seenSeed = seed
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	return f.userID, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID string, _ time.Time) (string, error) {
	f.calls = append(f.calls, "session")
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.sessionID, nil
}

func (f *fakeStore) SetSessionTokenHash(_ context.Context, _, hash string) error {
	f.calls = append(f.calls, "hash")
	if f.hashErr != nil {
		return f.hashErr
	}
	f.storedHash = hash
	return nil
}

func (f *fakeStore) FindUser(context.Context, string) (*MirroredUser, error) {
	return nil, ErrUserNotFound
}

func tenantAPIStub(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBridger(t *testing.T, store Store, tenantURL string) (*Bridger, *token.Codec, *token.Codec) {
	t.Helper()
	refresh := token.New([]byte("refresh-secret"))
	access := token.New([]byte("access-secret"))
	profiles := NewProfileClient(tenantURL, 2*time.Second)
	return NewBridger(store, profiles, refresh, access), refresh, access
}

func TestBridgeHappyPath(t *testing.T) {
	srv := tenantAPIStub(t, `{"data":[{"email":"a@x.com","full_name":"A X","email_verified":true}]}`, http.StatusOK)
	store := &fakeStore{userID: "507f1f77bcf86cd799439011", sessionID: "507f1f77bcf86cd799439012"}
	b, refresh, access := newBridger(t, store, srv.URL)

	tokens, err := b.Bridge(context.Background(), "a@x.com", "seed-token")
	require.NoError(t, err)

	// Strict two-phase order: session shell exists before the hash is stored.
	assert.Equal(t, []string{"upsert", "session", "hash"}, store.calls)

	// Profile made it through, not a stub.
	require.NotNil(t, store.seenProfile)
	assert.Equal(t, "A X", store.seenProfile.DisplayName())
	assert.False(t, store.seenProfile.Stub)
	assert.Equal(t, "seed-token", store.seenSeed)

	// Refresh token embeds user and session ids and hashes to the stored value.
	claims, err := refresh.Verify(tokens.Refresh)
	require.NoError(t, err)
	assert.Equal(t, store.userID, token.StringClaim(claims, "id"))
	assert.Equal(t, store.sessionID, token.StringClaim(claims, "sessionId"))

	sum := sha256.Sum256([]byte(tokens.Refresh))
	assert.Equal(t, hex.EncodeToString(sum[:]), store.storedHash)
	assert.NotEqual(t, tokens.Refresh, store.storedHash, "raw token must never be stored")

	// Access token carries only the user id.
	claims, err = access.Verify(tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, store.userID, token.StringClaim(claims, "id"))
	assert.Empty(t, token.StringClaim(claims, "sessionId"))
}

func TestBridgeTenantAPIDownUsesStub(t *testing.T) {
	store := &fakeStore{userID: "507f1f77bcf86cd799439011", sessionID: "507f1f77bcf86cd799439012"}
	// Point at a closed port.
	b, _, _ := newBridger(t, store, "http://127.0.0.1:1")

	_, err := b.Bridge(context.Background(), "a@x.com", "")
	require.NoError(t, err, "tenant-API outage must not fail the bridge")

	require.NotNil(t, store.seenProfile)
	assert.True(t, store.seenProfile.Stub)
	assert.Equal(t, "a@x.com", store.seenProfile.Email)
	assert.Equal(t, "a", Handle(store.seenProfile.Email))
}

func TestBridgeStoreFailureStopsBeforeTokens(t *testing.T) {
	srv := tenantAPIStub(t, `{"data":[]}`, http.StatusOK)
	store := &fakeStore{upsertErr: errors.New("store down")}
	b, _, _ := newBridger(t, store, srv.URL)

	tokens, err := b.Bridge(context.Background(), "a@x.com", "")
	require.Error(t, err)
	assert.Nil(t, tokens)
	assert.Equal(t, []string{"upsert"}, store.calls, "no session work after a failed upsert")
}

func TestBridgeSessionFailureStopsBeforeHash(t *testing.T) {
	srv := tenantAPIStub(t, `{"data":[]}`, http.StatusOK)
	store := &fakeStore{userID: "507f1f77bcf86cd799439011", sessionErr: errors.New("session insert failed")}
	b, _, _ := newBridger(t, store, srv.URL)

	tokens, err := b.Bridge(context.Background(), "a@x.com", "")
	require.Error(t, err)
	assert.Nil(t, tokens)
	assert.Equal(t, []string{"upsert", "session"}, store.calls)
}

func TestProfileDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"full name wins", Profile{Email: "a@x.com", FullName: "A X", FirstName: "B"}, "A X"},
		{"first and last", Profile{Email: "a@x.com", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", Profile{Email: "a@x.com", FirstName: "Ada"}, "Ada"},
		{"last only", Profile{Email: "a@x.com", LastName: "Lovelace"}, "Lovelace"},
		{"local part fallback", Profile{Email: "ada@x.com"}, "ada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
