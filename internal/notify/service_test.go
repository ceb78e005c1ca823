package notify

import (
	"context"
	"errors"
	"testing"

	"outreach-backend/internal/device/domain"
	"outreach-backend/internal/device/repository"
	"outreach-backend/pkg/apns"
	"outreach-backend/pkg/database"

	"github.com/rs/zerolog"
)

// stubPusher returns canned results per token and records what it was asked
// to send.
type stubPusher struct {
	results map[string]apns.PushResult
	pushed  []string
}

func (p *stubPusher) Push(ctx context.Context, token string, n apns.Notification) apns.PushResult {
	p.pushed = append(p.pushed, token)
	if r, ok := p.results[token]; ok {
		r.Token = token
		return r
	}
	return apns.PushResult{Token: token, Success: true, StatusCode: 200}
}

func (p *stubPusher) PushAll(ctx context.Context, tokens []string, n apns.Notification) []apns.PushResult {
	out := make([]apns.PushResult, len(tokens))
	for i, token := range tokens {
		out[i] = p.Push(ctx, token, n)
	}
	return out
}

func newTestService(t *testing.T, pusher Pusher) (*Service, repository.DeviceRepository) {
	t.Helper()
	db, err := database.NewSQLiteConnection(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Device{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewDeviceRepository(db)
	return NewService(repo, pusher, zerolog.Nop()), repo
}

func TestBroadcastEmptyRegistry(t *testing.T) {
	pusher := &stubPusher{}
	service, _ := newTestService(t, pusher)

	results, err := service.Broadcast(context.Background(), apns.Notification{Title: "x", Body: "y"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if results == nil {
		t.Fatal("expected an empty result slice, not nil")
	}
	if len(results) != 0 {
		t.Errorf("expected zero results, got %d", len(results))
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("no gateway calls expected, got %v", pusher.pushed)
	}
}

func TestBroadcastOrderMatchesSnapshot(t *testing.T) {
	pusher := &stubPusher{}
	service, repo := newTestService(t, pusher)

	for _, token := range []string{"tok-a", "tok-b", "tok-c"} {
		if _, err := repo.Upsert(token, repository.Metadata{}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	results, err := service.Broadcast(context.Background(), apns.Notification{Title: "x", Body: "y"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	want := []string{"tok-a", "tok-b", "tok-c"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for i := range want {
		if results[i].Token != want[i] {
			t.Errorf("results[%d].Token = %s, want %s", i, results[i].Token, want[i])
		}
	}
}

func TestBroadcastPrunesPermanentlyDeadTokens(t *testing.T) {
	pusher := &stubPusher{results: map[string]apns.PushResult{
		"tok-dead":    {Success: false, StatusCode: 410, Reason: "Unregistered"},
		"tok-flaky":   {Success: false, Reason: "network error"},
		"tok-healthy": {Success: true, StatusCode: 200},
	}}
	service, repo := newTestService(t, pusher)

	for _, token := range []string{"tok-dead", "tok-flaky", "tok-healthy"} {
		if _, err := repo.Upsert(token, repository.Metadata{}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	if _, err := service.Broadcast(context.Background(), apns.Notification{Title: "x", Body: "y"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	if d, _ := repo.Get("tok-dead"); d != nil {
		t.Error("permanently rejected token should be removed from the registry")
	}
	if d, _ := repo.Get("tok-flaky"); d == nil {
		t.Error("transient failure must not remove the token")
	}
	if d, _ := repo.Get("tok-healthy"); d == nil {
		t.Error("healthy token must stay registered")
	}
}

func TestDeliverToUnknownToken(t *testing.T) {
	pusher := &stubPusher{}
	service, _ := newTestService(t, pusher)

	_, err := service.DeliverTo(context.Background(), "tok-x", apns.Notification{Title: "x", Body: "y"})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("no gateway call expected for an unknown token, got %v", pusher.pushed)
	}
}

func TestDeliverToKnownToken(t *testing.T) {
	pusher := &stubPusher{}
	service, repo := newTestService(t, pusher)

	if _, err := repo.Upsert("tok-1", repository.Metadata{Name: "iPhone"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	result, err := service.DeliverTo(context.Background(), "tok-1", apns.Notification{Title: "x", Body: "y"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if len(pusher.pushed) != 1 || pusher.pushed[0] != "tok-1" {
		t.Errorf("expected exactly one push to tok-1, got %v", pusher.pushed)
	}
}
