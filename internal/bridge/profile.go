package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ProfileClient reads user profiles from the tenant-management API.
//
// The tenant API's response shapes have drifted over time, so fields are
// probed with gjson rather than bound to a rigid struct.
type ProfileClient struct {
	baseURL string
	client  *http.Client
}

// NewProfileClient builds a client for the tenant API at baseURL.
func NewProfileClient(baseURL string, timeout time.Duration) *ProfileClient {
	return &ProfileClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchByEmail returns the canonical profile for email. Best-effort: any
// failure (unreachable API, bad status, unparseable body, unknown email)
// degrades to a stub profile instead of an error, because a login must not
// hard-fail on a tenant-API outage.
func (p *ProfileClient) FetchByEmail(ctx context.Context, email string) *Profile {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/users?limit=1000", p.baseURL), nil)
	if err != nil {
		return StubProfile(email)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("tenant API unreachable, using stub profile")
		return StubProfile(email)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("email", email).Msg("tenant API error, using stub profile")
		return StubProfile(email)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StubProfile(email)
	}

	for _, user := range gjson.GetBytes(body, "data").Array() {
		if !strings.EqualFold(user.Get("email").String(), email) {
			continue
		}
		return &Profile{
			Email:         user.Get("email").String(),
			FullName:      user.Get("full_name").String(),
			FirstName:     user.Get("first_name").String(),
			LastName:      user.Get("last_name").String(),
			AvatarURL:     user.Get("avatar_url").String(),
			EmailVerified: user.Get("email_verified").Bool(),
		}
	}

	log.Warn().Str("email", email).Msg("email not known to tenant API, using stub profile")
	return StubProfile(email)
}

// VerifyBearer validates an Authorization header value against the tenant
// API's identity endpoint and returns the email it vouches for.
func (p *ProfileClient) VerifyBearer(ctx context.Context, authHeader string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/auth/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tenant API verification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tenant API rejected token: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	email := gjson.GetBytes(body, "email").String()
	if email == "" {
		return "", fmt.Errorf("tenant API response missing email")
	}
	return email, nil
}
