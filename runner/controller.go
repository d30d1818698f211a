package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/ats/backend"
	"github.com/rustyeddy/ats/config"
	"github.com/rustyeddy/ats/gate"
	"github.com/rustyeddy/ats/notify"
	"github.com/rustyeddy/ats/pkg/id"
	"github.com/rustyeddy/ats/pkg/logger"
)

// ResumeSaver persists instruments that stop while still holding a position.
// config.ResumeStore satisfies it.
type ResumeSaver interface {
	SaveUnfinished(config.Instrument) error
	Remove(code string) error
}

// Controller owns one runner per configured instrument: it resolves the
// account once, starts runners with a stagger so they do not stampede the
// admission gate, and waits for collective termination.
type Controller struct {
	accNo    string
	gate     *gate.Gate
	notifier notify.Notifier
	poll     time.Duration
	stagger  time.Duration
	log      *zap.Logger

	runners []*Runner
}

func NewController(accNo string, g *gate.Gate, n notify.Notifier, poll, stagger time.Duration) *Controller {
	if n == nil {
		n = notify.Nop{}
	}
	return &Controller{
		accNo:    accNo,
		gate:     g,
		notifier: n,
		poll:     poll,
		stagger:  stagger,
		log:      logger.Named("controller"),
	}
}

// AddRunner builds a runner for one instrument over its own backend session.
// The process account number overrides any per-instrument value.
func (c *Controller) AddRunner(in config.Instrument, be backend.Backend) error {
	in.AccNo = c.accNo

	r, err := New(in, be, c.gate, c.notifier, c.poll)
	if err != nil {
		return err
	}
	c.runners = append(c.runners, r)

	c.log.Info("runner registered", zap.String("code", in.Code), zap.String("acc_no", c.accNo))
	return nil
}

// Runners returns the registered runners in registration order.
func (c *Controller) Runners() []*Runner {
	return c.runners
}

// RunAll starts every runner, pausing between starts so first-time entries
// reach the admission gate spread out.
func (c *Controller) RunAll(ctx context.Context) {
	runID := id.New()
	c.log.Info("starting runners", zap.String("run_id", runID), zap.Int("count", len(c.runners)))

	for i, r := range c.runners {
		r.Start(ctx)
		c.log.Info("runner started", zap.String("code", r.Code()))

		if i < len(c.runners)-1 && c.stagger > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.stagger):
			}
		}
	}
}

// WaitAll blocks until every runner's run flag is down or ctx is canceled.
func (c *Controller) WaitAll(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		alive := 0
		for _, r := range c.runners {
			if r.Running() {
				alive++
			}
		}
		if alive == 0 {
			c.log.Info("all runners stopped")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StopAndSaveAll stops every runner, snapshots its state, and reconciles the
// resume store: instruments that stopped while holding are saved for the
// next session, finished ones are removed. A nil saver skips persistence.
func (c *Controller) StopAndSaveAll(saver ResumeSaver) []config.Instrument {
	snaps := make([]config.Instrument, 0, len(c.runners))

	for _, r := range c.runners {
		snap := r.StopAndSave()
		snaps = append(snaps, snap)

		if saver == nil {
			continue
		}

		if snap.State != nil && State(*snap.State) == Holding {
			if err := saver.SaveUnfinished(snap); err != nil {
				c.log.Error("save unfinished instrument", zap.String("code", snap.Code), zap.Error(err))
			}
			continue
		}
		if err := saver.Remove(snap.Code); err != nil {
			c.log.Error("remove finished instrument", zap.String("code", snap.Code), zap.Error(err))
		}
	}
	return snaps
}
