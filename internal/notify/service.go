// Package notify fans one message out to registered devices and aggregates
// per-target outcomes.
package notify

import (
	"context"
	"errors"

	"outreach-backend/internal/device/repository"
	"outreach-backend/pkg/apns"

	"github.com/rs/zerolog"
)

// ErrDeviceNotFound is returned by DeliverTo for tokens absent from the
// registry. No gateway call is made in that case.
var ErrDeviceNotFound = errors.New("device not found")

// Pusher is the slice of the gateway client the fan-out needs.
type Pusher interface {
	Push(ctx context.Context, deviceToken string, n apns.Notification) apns.PushResult
	PushAll(ctx context.Context, tokens []string, n apns.Notification) []apns.PushResult
}

type Service struct {
	repo   repository.DeviceRepository
	pusher Pusher
	log    zerolog.Logger
}

func NewService(repo repository.DeviceRepository, pusher Pusher, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		pusher: pusher,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

// Broadcast sends the notification to every device registered at call time.
// The token set is snapshotted once, so registrations changing mid-flight
// neither gain nor lose outcomes; results match the snapshot order. Tokens
// the gateway reports as permanently dead are removed from the registry so
// future broadcasts stop wasting calls on them.
func (s *Service) Broadcast(ctx context.Context, n apns.Notification) ([]apns.PushResult, error) {
	tokens, err := s.repo.ListTokens()
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []apns.PushResult{}, nil
	}

	results := s.pusher.PushAll(ctx, tokens, n)
	s.pruneDead(results)

	sent := 0
	for _, r := range results {
		if r.Success {
			sent++
		}
	}
	s.log.Info().Int("targets", len(tokens)).Int("sent", sent).Msg("broadcast complete")
	return results, nil
}

// DeliverTo sends the notification to a single registered token.
func (s *Service) DeliverTo(ctx context.Context, token string, n apns.Notification) (apns.PushResult, error) {
	device, err := s.repo.Get(token)
	if err != nil {
		return apns.PushResult{}, err
	}
	if device == nil {
		return apns.PushResult{}, ErrDeviceNotFound
	}

	result := s.pusher.Push(ctx, token, n)
	s.pruneDead([]apns.PushResult{result})
	return result, nil
}

// pruneDead drops tokens whose rejection reason marks them permanently
// invalid (unregistered app, malformed or expired token).
func (s *Service) pruneDead(results []apns.PushResult) {
	for _, r := range results {
		if r.Success || !apns.IsPermanentFailure(r.Reason) {
			continue
		}
		removed, err := s.repo.Remove(r.Token)
		if err != nil {
			s.log.Error().Err(err).Str("token", apns.TokenPrefix(r.Token)).Msg("dead token cleanup failed")
			continue
		}
		if removed {
			s.log.Info().
				Str("token", apns.TokenPrefix(r.Token)).
				Str("reason", r.Reason).
				Msg("removed dead device token")
		}
	}
}
