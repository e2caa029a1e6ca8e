package cloudapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSource holds the access/refresh token pair and refreshes the access
// token ahead of its expiry. The expiry is read from the token's own claims
// without verifying the signature: the client only schedules refreshes, the
// server still validates every request.
type tokenSource struct {
	mu      sync.Mutex
	access  string
	refresh string
	client  *Client
}

// refreshSkew renews tokens slightly before the server would reject them.
const refreshSkew = 30 * time.Second

func (t *tokenSource) set(access, refresh string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = access
	t.refresh = refresh
}

// accessToken returns a usable access token, refreshing first when the
// current one is about to expire. Anonymous clients (no tokens) return "".
func (t *tokenSource) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.access == "" || !expiresSoon(t.access) {
		return t.access, nil
	}
	if t.refresh == "" {
		return t.access, nil
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	in := map[string]string{"refresh_token": t.refresh}
	if err := t.client.postWithoutAuth(ctx, "/v1/auth/refresh", in, &out); err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	t.access = out.AccessToken
	t.refresh = out.RefreshToken
	return t.access, nil
}

func expiresSoon(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// opaque token, let the server decide
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshSkew
}
