// Package scheduler runs the server's recurring jobs: the midnight
// plan rollover, nightly backups, provider recovery probes, and
// trend decay.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mochikko/diary-server/internal/engine"
	"github.com/mochikko/diary-server/internal/llm"
	"github.com/mochikko/diary-server/internal/store"
	"github.com/mochikko/diary-server/internal/trends"
)

// Scheduler manages scheduled jobs.
type Scheduler struct {
	scheduler gocron.Scheduler
	engine    *engine.Engine
	store     *store.Store
	gateway   *llm.Gateway
	tracker   *trends.Tracker
	timezone  *time.Location
}

// New creates a scheduler in the given timezone.
func New(eng *engine.Engine, st *store.Store, gw *llm.Gateway, tracker *trends.Tracker, tz *time.Location) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(tz))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scheduler: s,
		engine:    eng,
		store:     st,
		gateway:   gw,
		tracker:   tracker,
		timezone:  tz,
	}, nil
}

// Start registers all jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	// Plan rollover at midnight; EnsurePlan also rolls lazily on the
	// first event of a new day, this tick just makes it prompt.
	_, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(s.rollover),
		gocron.WithName("plan-rollover"),
	)
	if err != nil {
		return err
	}

	// Nightly backup at 03:00
	_, err = s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
		gocron.NewTask(s.nightlyBackup),
		gocron.WithName("nightly-backup"),
	)
	if err != nil {
		return err
	}

	// Probe circuit-open providers every 5 minutes
	_, err = s.scheduler.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.probeProviders),
		gocron.WithName("provider-probe"),
	)
	if err != nil {
		return err
	}

	// Decay trending topics hourly
	_, err = s.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(s.decayTrends),
		gocron.WithName("trend-decay"),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	log.Println("Scheduler started")
	return nil
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) rollover() {
	log.Println("Rolling over daily plan...")
	s.engine.Rollover()
}

func (s *Scheduler) nightlyBackup() {
	label := BackupLabel(time.Now().In(s.timezone))
	if err := s.store.Backup(label); err != nil {
		log.Printf("Nightly backup %s failed: %v", label, err)
		return
	}
	log.Printf("Nightly backup written: %s", label)
}

// BackupLabel names the automatic nightly snapshot for a day.
func BackupLabel(t time.Time) string {
	return "auto-" + t.Format("2006-01-02")
}

func (s *Scheduler) probeProviders() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.gateway.Probe(ctx)
}

func (s *Scheduler) decayTrends() {
	if err := s.tracker.DecayAll(); err != nil {
		log.Printf("Trend decay failed: %v", err)
	}
}
