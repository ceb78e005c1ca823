// Package outreach owns time: fixed daily outreach jobs, one-off delayed
// jobs and the event/agent entry points. Every path terminates in a
// registry-wide broadcast; the gateway client is never touched directly.
package outreach

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"outreach-backend/pkg/ai"
	"outreach-backend/pkg/apns"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Broadcaster is the slice of the fan-out service the scheduler needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, n apns.Notification) ([]apns.PushResult, error)
}

// Fallback bodies used when the content-generation endpoint times out or
// misbehaves. A scheduled outreach always produces some notification.
const (
	MorningFallback = "Good morning! Hope you have a great day ahead."
	EveningFallback = "Good evening! Time to wind down and review your day."

	morningPrompt = "Write one short, friendly good-morning push notification message. Plain text, one sentence, no emoji."
	eveningPrompt = "Write one short, calm good-evening push notification message. Plain text, one sentence, no emoji."
)

var ErrNotRunning = errors.New("scheduler is not running")

type Config struct {
	MorningCron      string
	EveningCron      string
	GeneratorTimeout time.Duration
}

type Scheduler struct {
	cfg         Config
	broadcaster Broadcaster
	generator   ai.Generator
	log         zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	jobs    map[string]*oneShotJob

	// Last fire times of the fixed jobs, for observability.
	lastFired map[string]time.Time

	firing sync.WaitGroup
}

func NewScheduler(cfg Config, broadcaster Broadcaster, generator ai.Generator, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		broadcaster: broadcaster,
		generator:   generator,
		log:         log.With().Str("component", "outreach").Logger(),
		jobs:        make(map[string]*oneShotJob),
		lastFired:   make(map[string]time.Time),
	}
}

// Start registers the fixed daily triggers and begins accepting one-shot and
// event work.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.MorningCron, func() { s.runFixed("morning", morningPrompt, MorningFallback, "Good Morning") }); err != nil {
		return errors.New("invalid morning cron spec: " + s.cfg.MorningCron)
	}
	if _, err := c.AddFunc(s.cfg.EveningCron, func() { s.runFixed("evening", eveningPrompt, EveningFallback, "Good Evening") }); err != nil {
		return errors.New("invalid evening cron spec: " + s.cfg.EveningCron)
	}
	c.Start()

	s.cron = c
	s.started = true
	s.log.Info().
		Str("morning", s.cfg.MorningCron).
		Str("evening", s.cfg.EveningCron).
		Msg("scheduler started")
	return nil
}

// Stop cancels pending triggers and rejects new work. Firings already in
// flight are allowed to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false

	cronCtx := s.cron.Stop()
	s.cron = nil
	for id, job := range s.jobs {
		job.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	<-cronCtx.Done()
	s.firing.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// runFixed is the shared body of the morning and evening jobs: generate
// content with a hard timeout, fall back to the canned string, broadcast.
// A failed firing logs and leaves the job armed for its next trigger.
func (s *Scheduler) runFixed(name, prompt, fallback, title string) {
	s.firing.Add(1)
	defer s.firing.Done()

	body := ai.GenerateOrFallback(context.Background(), s.generator, prompt, fallback, s.cfg.GeneratorTimeout, s.log)

	_, err := s.broadcaster.Broadcast(context.Background(), apns.Notification{
		Title:    title,
		Body:     body,
		Category: apns.CategoryMessage,
		Urgency:  apns.UrgencyNormal,
	})

	s.mu.Lock()
	s.lastFired[name] = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("fixed outreach failed")
		return
	}
	s.log.Info().Str("job", name).Msg("fixed outreach fired")
}

// LastFired reports when a fixed job last fired, if it has.
func (s *Scheduler) LastFired(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastFired[name]
	return t, ok
}

// TaskComplete is the event entry point for finished background work.
func (s *Scheduler) TaskComplete(ctx context.Context, name, result string) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotRunning
	}

	body := result
	if body == "" {
		body = "Finished."
	}
	_, err := s.broadcaster.Broadcast(ctx, apns.Notification{
		Title:    "Task complete: " + name,
		Body:     body,
		Category: apns.CategoryMessage,
		Urgency:  apns.UrgencyNormal,
	})
	return err
}

type agentDecision struct {
	ShouldNotify *bool  `json:"should_notify"`
	Message      string `json:"message"`
}

// HandleDecision parses a structured agent decision and broadcasts only when
// the agent decided to notify with a non-empty message. A malformed payload
// is dropped with a log line distinct from a negative decision; neither is
// an error to the caller.
func (s *Scheduler) HandleDecision(ctx context.Context, payload []byte) (int, bool) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.log.Warn().Msg("dropped agent decision: scheduler stopped")
		return 0, false
	}

	var decision agentDecision
	if err := json.Unmarshal(payload, &decision); err != nil || decision.ShouldNotify == nil {
		s.log.Warn().Msg("dropped malformed agent decision")
		return 0, false
	}

	if !*decision.ShouldNotify || decision.Message == "" {
		s.log.Debug().Msg("agent declined to notify")
		return 0, true
	}

	results, err := s.broadcaster.Broadcast(ctx, apns.Notification{
		Title:    "Update",
		Body:     decision.Message,
		Category: apns.CategoryMessage,
		Urgency:  apns.UrgencyNormal,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("agent-initiated broadcast failed")
		return 0, false
	}

	notified := 0
	for _, r := range results {
		if r.Success {
			notified++
		}
	}
	return notified, true
}
