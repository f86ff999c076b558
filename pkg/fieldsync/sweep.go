package fieldsync

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/bft-labs/fieldsync/internal/app"
	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/internal/ports"
)

// sweeper drains the queue on a cron schedule.
type sweeper struct {
	spec   string
	cron   *cron.Cron
	logger ports.Logger
}

func newSweeper(spec string, drain func(app.Trigger), logger ports.Logger) (*sweeper, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %v", domain.ErrInvalidConfig, spec, err)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() {
		drain(app.TriggerSchedule)
	}))

	return &sweeper{spec: spec, cron: c, logger: logger}, nil
}

func (s *sweeper) start() {
	s.cron.Start()
	s.logger.Info("sweep scheduled", ports.String("schedule", s.spec))
}

// stop waits for a running sweep job to return or ctx to end.
func (s *sweeper) stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
