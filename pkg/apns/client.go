// Package apns sends pushes to the platform push gateway over HTTP/2,
// authenticating with a cached ES256-signed provider token.
package apns

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

const (
	hostProduction = "https://api.push.apple.com"
	hostSandbox    = "https://api.sandbox.push.apple.com"

	requestTimeout = 10 * time.Second

	// Per-batch fan-out bound; keeps us under the gateway's per-connection
	// stream limits.
	maxConcurrentPushes = 64
)

// Config carries the gateway credentials supplied out of band.
type Config struct {
	KeyPath    string // path to the ES256 private key (.p8)
	KeyID      string // key identifier associated with the signing key
	TeamID     string // issuer team identifier
	Topic      string // bundle id used as apns-topic
	Production bool
}

// Client is the push gateway client. One instance is shared by all senders.
type Client struct {
	httpClient *http.Client
	host       string

	signingKey *ecdsa.PrivateKey
	keyID      string
	teamID     string
	topic      string

	tokenMu sync.RWMutex
	token   *providerToken
	now     func() time.Time

	log zerolog.Logger
}

// NewClient loads the signing key and builds the HTTP/2 client. A missing or
// invalid key file is a startup error; callers are expected to treat it as
// fatal rather than retry.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	keyBytes, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key %s: %w", cfg.KeyPath, err)
	}

	signingKey, err := jwt.ParseECPrivateKeyFromPEM(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key %s: %w", cfg.KeyPath, err)
	}

	host := hostSandbox
	if cfg.Production {
		host = hostProduction
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http2.Transport{},
			Timeout:   requestTimeout,
		},
		host:       host,
		signingKey: signingKey,
		keyID:      cfg.KeyID,
		teamID:     cfg.TeamID,
		topic:      cfg.Topic,
		now:        time.Now,
		log:        log.With().Str("component", "apns").Logger(),
	}, nil
}

// Push sends one notification to one device token.
func (c *Client) Push(ctx context.Context, deviceToken string, n Notification) PushResult {
	result := PushResult{Token: deviceToken}

	bearer, err := c.bearerToken()
	if err != nil {
		result.Reason = err.Error()
		return result
	}

	body, err := json.Marshal(buildPushBody(n))
	if err != nil {
		result.Reason = fmt.Sprintf("failed to encode payload: %v", err)
		return result
	}

	url := c.host + "/3/device/" + deviceToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Reason = fmt.Sprintf("failed to build request: %v", err)
		return result
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", c.topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", n.Urgency.apnsPriority())
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// StatusCode stays 0: the gateway never answered.
		c.log.Warn().Str("token", TokenPrefix(deviceToken)).Err(transportErr(err)).Msg("push request failed")
		result.Reason = "network error"
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		result.Success = true
		result.ApnsID = resp.Header.Get("apns-id")
		return result
	}

	var gatewayErr struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gatewayErr); err == nil && gatewayErr.Reason != "" {
		result.Reason = gatewayErr.Reason
	} else {
		result.Reason = fmt.Sprintf("gateway status %d", resp.StatusCode)
	}
	c.log.Warn().
		Str("token", TokenPrefix(deviceToken)).
		Int("status", resp.StatusCode).
		Str("reason", result.Reason).
		Msg("push rejected")
	return result
}

// transportErr unwraps a client error to its cause. The wrapper's message
// embeds the request URL, and with it the full device token, which must not
// reach any log line.
func transportErr(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// PushAll sends one notification to many device tokens concurrently, bounded
// by maxConcurrentPushes. Results are positionally ordered to match tokens;
// one token's failure never affects the others.
func (c *Client) PushAll(ctx context.Context, tokens []string, n Notification) []PushResult {
	results := make([]PushResult, len(tokens))
	sem := make(chan struct{}, maxConcurrentPushes)

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = c.Push(ctx, token, n)
		}(i, token)
	}
	wg.Wait()
	return results
}
