package apns

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The gateway hard-expires provider tokens after an hour. Refreshing well
// before that keeps clock skew between us and the gateway from producing
// spurious ExpiredProviderToken rejections.
const tokenRefreshInterval = 50 * time.Minute

type providerToken struct {
	bearer   string
	issuedAt time.Time
}

// bearerToken returns the cached provider token, regenerating it when its
// age exceeds the refresh interval. Concurrent senders share one token;
// regeneration is double-checked under the write lock.
func (c *Client) bearerToken() (string, error) {
	c.tokenMu.RLock()
	cached := c.token
	c.tokenMu.RUnlock()
	if cached != nil && c.now().Sub(cached.issuedAt) < tokenRefreshInterval {
		return cached.bearer, nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != nil && c.now().Sub(c.token.issuedAt) < tokenRefreshInterval {
		return c.token.bearer, nil
	}

	issuedAt := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": c.teamID,
		"iat": issuedAt.Unix(),
	})
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign provider token: %w", err)
	}

	c.token = &providerToken{bearer: signed, issuedAt: issuedAt}
	return signed, nil
}
