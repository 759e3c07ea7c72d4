package backup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the backup daily at 02:00 local time.
const DefaultSchedule = "0 2 * * *"

// Scheduler runs a Snapshotter on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// ValidateSchedule reports whether schedule is a valid five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return nil
}

// NewScheduler schedules snap to run on schedule. Runs never overlap; a failed
// run is logged and the next one happens on schedule.
func NewScheduler(ctx context.Context, schedule string, snap *Snapshotter) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		_, _ = snap.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start begins running scheduled backups in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		slog.Info("backup scheduled", "next", e.Next)
	}
}

// Stop stops the schedule and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
