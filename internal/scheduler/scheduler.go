package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Target is probed on every tick. *weather.Service satisfies it.
type Target interface {
	Probe(ctx context.Context, country string) error
}

// Status is the outcome of the most recent probe.
type Status struct {
	Enabled     bool      `json:"enabled"`
	Healthy     bool      `json:"healthy"`
	Country     string    `json:"country,omitempty"`
	LastRun     time.Time `json:"lastRun,omitempty"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Scheduler periodically probes the upstream providers for a configured country.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Target
	country   string
	interval  time.Duration
	timeout   time.Duration

	mu     sync.RWMutex
	status Status
}

// New creates a new Scheduler. An empty country disables probing.
func New(country string, interval, timeout time.Duration, target Target) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		target:    target,
		country:   country,
		interval:  interval,
		timeout:   timeout,
		status:    Status{Enabled: country != "", Healthy: true, Country: country},
	}
}

// Start schedules the periodic probe and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.country == "" {
		log.Println("scheduler: no probe country configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce probes the target and records the outcome.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now().UTC()
	err := s.target.Probe(ctx, s.country)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastRun = started
	if err != nil {
		log.Printf("ERROR: scheduler: upstream probe for %s failed: %v", s.country, err)
		s.status.Healthy = false
		s.status.LastError = err.Error()
		return
	}
	s.status.Healthy = true
	s.status.LastSuccess = started
	s.status.LastError = ""
}

// Status returns a copy of the latest probe outcome.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
