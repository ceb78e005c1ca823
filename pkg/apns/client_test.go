package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// pointClientAt rewires a client to a plain-HTTP test server.
func pointClientAt(client *Client, server *httptest.Server) {
	client.httpClient = server.Client()
	client.host = server.URL
}

func TestPushSuccess(t *testing.T) {
	var gotPath, gotAuth, gotTopic, gotPriority, gotPushType string
	var gotBody map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("authorization")
		gotTopic = r.Header.Get("apns-topic")
		gotPriority = r.Header.Get("apns-priority")
		gotPushType = r.Header.Get("apns-push-type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("apns-id", "ABCD-1234")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t)
	pointClientAt(client, server)

	badge := 3
	result := client.Push(context.Background(), "device-token-1", Notification{
		Title:    "Hello",
		Body:     "World",
		Category: CategoryMessage,
		Badge:    &badge,
		Urgency:  UrgencyHigh,
		Data:     &Payload{ContextType: "test", Fields: map[string]string{"k": "v"}},
	})

	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", result.StatusCode)
	}
	if result.ApnsID != "ABCD-1234" {
		t.Errorf("gateway id = %q, want ABCD-1234", result.ApnsID)
	}
	if gotPath != "/3/device/device-token-1" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "bearer ") {
		t.Errorf("authorization = %q, want bearer token", gotAuth)
	}
	if gotTopic != "com.example.app" {
		t.Errorf("apns-topic = %q", gotTopic)
	}
	if gotPriority != "10" {
		t.Errorf("apns-priority = %q, want 10 for high urgency", gotPriority)
	}
	if gotPushType != "alert" {
		t.Errorf("apns-push-type = %q, want alert", gotPushType)
	}
	if _, ok := gotBody["aps"]; !ok {
		t.Error("request body missing aps key")
	}
	if _, ok := gotBody["data"]; !ok {
		t.Error("request body missing data key")
	}
}

func TestPushGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "Unregistered"})
	}))
	defer server.Close()

	client := newTestClient(t)
	pointClientAt(client, server)

	result := client.Push(context.Background(), "dead-token", Notification{Title: "x", Body: "y"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.StatusCode != http.StatusGone {
		t.Errorf("status = %d, want 410", result.StatusCode)
	}
	if result.Reason != "Unregistered" {
		t.Errorf("reason = %q, want Unregistered", result.Reason)
	}
	if !IsPermanentFailure(result.Reason) {
		t.Error("Unregistered should count as a permanent failure")
	}
}

func TestPushNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t)
	pointClientAt(client, server)
	server.Close()

	result := client.Push(context.Background(), "tok", Notification{Title: "x", Body: "y"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for a network-level failure", result.StatusCode)
	}
	if result.Reason != "network error" {
		t.Errorf("reason = %q, want generic network error", result.Reason)
	}
}

func TestPushNetworkFailureDoesNotLogFullToken(t *testing.T) {
	var buf bytes.Buffer
	client, err := NewClient(Config{
		KeyPath: writeTestKey(t),
		KeyID:   "KEY123",
		TeamID:  "TEAM456",
		Topic:   "com.example.app",
	}, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	pointClientAt(client, server)
	server.Close()

	// The transport error wraps the request URL, which contains the token.
	token := "super-secret-device-token-0123456789abcdef"
	result := client.Push(context.Background(), token, Notification{Title: "x", Body: "y"})
	if result.Success || result.StatusCode != 0 {
		t.Fatalf("expected a network-level failure, got %+v", result)
	}

	logged := buf.String()
	if logged == "" {
		t.Fatal("expected the failure to be logged")
	}
	if strings.Contains(logged, token) {
		t.Errorf("full device token leaked into the log: %s", logged)
	}
	if !strings.Contains(logged, TokenPrefix(token)) {
		t.Errorf("expected the token prefix in the log, got: %s", logged)
	}
}

func TestPushAllPreservesOrder(t *testing.T) {
	// Later tokens answer faster, so completion order inverts input order.
	delays := map[string]time.Duration{
		"tok-a": 60 * time.Millisecond,
		"tok-b": 30 * time.Millisecond,
		"tok-c": 0,
	}
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.URL.Path, "/3/device/")
		mu.Lock()
		delay := delays[token]
		mu.Unlock()
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t)
	pointClientAt(client, server)

	tokens := []string{"tok-a", "tok-b", "tok-c"}
	results := client.PushAll(context.Background(), tokens, Notification{Title: "x", Body: "y"})

	if len(results) != len(tokens) {
		t.Fatalf("expected %d results, got %d", len(tokens), len(results))
	}
	for i, token := range tokens {
		if results[i].Token != token {
			t.Errorf("results[%d].Token = %s, want %s", i, results[i].Token, token)
		}
		if !results[i].Success {
			t.Errorf("results[%d] not successful: %+v", i, results[i])
		}
	}
}

func TestPushAllOneFailureDoesNotCancelOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "bad-token") {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"reason": "BadDeviceToken"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t)
	pointClientAt(client, server)

	results := client.PushAll(context.Background(), []string{"ok-1", "bad-token", "ok-2"}, Notification{Title: "x", Body: "y"})
	if !results[0].Success || !results[2].Success {
		t.Errorf("healthy tokens should succeed: %+v", results)
	}
	if results[1].Success || results[1].Reason != "BadDeviceToken" {
		t.Errorf("bad token should fail with gateway reason: %+v", results[1])
	}
}

func TestUrgencyPriorityMapping(t *testing.T) {
	tests := []struct {
		urgency Urgency
		want    string
	}{
		{UrgencyHigh, "10"},
		{UrgencyNormal, "5"},
		{UrgencyLow, "1"},
		{Urgency(""), "5"},
	}
	for _, tt := range tests {
		if got := tt.urgency.apnsPriority(); got != tt.want {
			t.Errorf("apnsPriority(%q) = %s, want %s", tt.urgency, got, tt.want)
		}
	}
}

func TestTokenPrefix(t *testing.T) {
	if got := TokenPrefix("abcdefghijklmnop"); got != "abcdefgh" {
		t.Errorf("TokenPrefix = %q, want abcdefgh", got)
	}
	if got := TokenPrefix("short"); got != "short" {
		t.Errorf("TokenPrefix = %q, want short", got)
	}
}
