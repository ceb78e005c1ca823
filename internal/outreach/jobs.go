package outreach

import (
	"context"
	"time"

	"outreach-backend/pkg/apns"

	"github.com/google/uuid"
)

type oneShotJob struct {
	id           string
	name         string
	fireAt       time.Time
	timer        *time.Timer
	notification apns.Notification
}

// JobInfo describes a pending one-shot job.
type JobInfo struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	FireAt time.Time `json:"fire_at"`
}

// ScheduleOnce arms a job that fires exactly once after the given delay,
// broadcasting the prebuilt notification, then removes itself.
func (s *Scheduler) ScheduleOnce(delay time.Duration, name string, n apns.Notification) (JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return JobInfo{}, ErrNotRunning
	}

	job := &oneShotJob{
		id:           uuid.NewString(),
		name:         name,
		fireAt:       time.Now().Add(delay),
		notification: n,
	}
	job.timer = time.AfterFunc(delay, func() { s.fireOnce(job.id) })
	s.jobs[job.id] = job

	s.log.Info().
		Str("job_id", job.id).
		Str("name", name).
		Time("fire_at", job.fireAt).
		Msg("one-shot job scheduled")
	return JobInfo{ID: job.id, Name: job.name, FireAt: job.fireAt}, nil
}

// fireOnce runs a one-shot job at its trigger time. The job is removed from
// the table before the broadcast, so a concurrent cancel or a second timer
// tick cannot fire it twice. The firing count is taken while still holding
// the lock, so a Stop racing with the trigger always waits for the broadcast.
func (s *Scheduler) fireOnce(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
		s.firing.Add(1)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	defer s.firing.Done()

	if _, err := s.broadcaster.Broadcast(context.Background(), job.notification); err != nil {
		s.log.Error().Err(err).Str("job_id", id).Str("name", job.name).Msg("one-shot job failed")
		return
	}
	s.log.Info().Str("job_id", id).Str("name", job.name).Msg("one-shot job fired")
}

// CancelJob stops a pending one-shot job before it fires.
func (s *Scheduler) CancelJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(s.jobs, id)
	job.timer.Stop()
	s.log.Info().Str("job_id", id).Str("name", job.name).Msg("one-shot job cancelled")
	return true
}

// Job looks up a pending one-shot job by id.
func (s *Scheduler) Job(id string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return JobInfo{ID: job.id, Name: job.name, FireAt: job.fireAt}, true
}

// Jobs snapshots the pending one-shot jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, JobInfo{ID: job.id, Name: job.name, FireAt: job.fireAt})
	}
	return out
}
