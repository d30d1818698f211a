// Package runner drives one threshold-trading loop per instrument and the
// controller that owns them. Each runner polls its trading backend, applies
// the instrument's fixed B1/S1 rules, and coordinates first-time position
// entry through the admission gate.
package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/ats/backend"
	"github.com/rustyeddy/ats/config"
	"github.com/rustyeddy/ats/gate"
	"github.com/rustyeddy/ats/notify"
	"github.com/rustyeddy/ats/pkg/logger"
)

// Runner is the per-instrument state machine. It owns one goroutine, one
// backend session, and its State; nothing else touches them.
type Runner struct {
	cfg      config.Instrument
	name     string
	be       backend.Backend
	gate     *gate.Gate
	notifier notify.Notifier
	log      *zap.Logger
	poll     time.Duration

	state   atomic.Int32
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	current float64 // last refreshed price, loop goroutine only
}

// New builds a runner for one instrument. The instrument name must resolve;
// an unknown code is fatal to this runner's startup.
func New(cfg config.Instrument, be backend.Backend, g *gate.Gate, n notify.Notifier, poll time.Duration) (*Runner, error) {
	name, err := be.InstrumentName(cfg.Code)
	if err != nil {
		return nil, err
	}

	if n == nil {
		n = notify.Nop{}
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	r := &Runner{
		cfg:      cfg,
		name:     name,
		be:       be,
		gate:     g,
		notifier: n,
		log:      logger.Named("runner." + cfg.Code),
		poll:     poll,
		done:     make(chan struct{}),
	}
	r.state.Store(int32(NoPosition))

	if cfg.State != nil {
		if st, ok := StateFromInt(*cfg.State); ok {
			r.log.Info("resuming previous session", zap.Stringer("state", st))
			r.state.Store(int32(st))
		}
	}

	r.log.Info("runner ready", zap.String("name", name))
	return r, nil
}

// State reports the runner's current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Running reports whether the loop goroutine is still alive.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Code returns the instrument code this runner trades.
func (r *Runner) Code() string {
	return r.cfg.Code
}

// Start launches the runner loop on its own goroutine.
func (r *Runner) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running.Store(true)

	go r.run(runCtx)
}

// Stop requests termination and moves the state to Stopped. It takes effect
// at the next loop-iteration boundary, or immediately at the gate-wait point.
func (r *Runner) Stop() {
	r.setState(Stopped)
	r.running.Store(false)
	if r.cancel != nil {
		r.cancel()
	}
}

// StopAndSave snapshots the trading state as it was before the stop request,
// stops the runner, waits for its loop to exit, and returns the instrument
// config carrying the snapshot. A runner still in Holding is what the
// controller persists for resume.
func (r *Runner) StopAndSave() config.Instrument {
	st := int(r.State())
	r.Stop()
	if r.cancel != nil {
		<-r.done
	}

	snap := r.cfg
	snap.State = &st
	return snap
}

// run is the loop boundary: panics and unexpected errors are caught here,
// logged with full context, and terminate only this runner. The gate release
// is owner-scoped and idempotent, so it is always safe on the way out.
func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.running.Store(false)
	defer r.gate.Release(r.cfg.Code)
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("runner loop panicked",
				zap.Any("panic", p),
				zap.Stack("stack"),
				zap.Stringer("state", r.State()),
			)
			r.notifier.Error("runner loop panicked", r.name)
		}
	}()

	r.log.Info("runner loop started")

	err := r.loop(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		r.log.Info("runner loop finished", zap.Stringer("state", r.State()))
	default:
		r.log.Error("runner terminated",
			zap.Error(err),
			zap.Stringer("state", r.State()),
			zap.Float64("current_price", r.current),
		)
		r.notifier.Error(err.Error(), r.name)
	}
}

func (r *Runner) loop(ctx context.Context) error {
	// A position recorded by a prior session means we start out holding.
	// Explicit resume state from the config takes precedence.
	if r.cfg.State == nil {
		if _, ok, err := r.be.LatestTradePrice(ctx, r.cfg.Code); err != nil {
			return err
		} else if ok {
			r.setState(Holding)
		}
	}

	for r.running.Load() {
		err := r.refresh(ctx)
		if err == nil {
			err = r.dispatch(ctx)
		}

		switch {
		case err == nil:
		case errors.Is(err, backend.ErrReplayExhausted):
			// End of data, not a failure.
			r.log.Info("price series exhausted, stopping")
			r.setState(Stopped)
		case errors.Is(err, backend.ErrPriceUnavailable):
			r.log.Warn("no price this cycle, skipping")
		case errors.Is(err, backend.ErrLedgerWrite):
			r.log.Error("ledger write failed, retrying next cycle", zap.Error(err))
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}

		if r.State() == Stopped {
			r.running.Store(false)
			r.gate.Release(r.cfg.Code)
			r.log.Info("released admission gate")
			break
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.poll):
		}
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context) error {
	switch r.State() {
	case NoPosition:
		return r.enterPosition(ctx)
	case Holding:
		return r.holdCycle(ctx)
	default:
		return nil
	}
}

// refresh updates the cached current price ahead of every cycle.
func (r *Runner) refresh(ctx context.Context) error {
	p, err := r.be.CurrentPrice(ctx, r.cfg.Code)
	if err != nil {
		return err
	}
	r.current = p
	return nil
}

// enterPosition is the NoPosition entry path: wait for the admission gate,
// open B1.qty, release, and move to Holding. A stop while waiting exits
// without opening.
func (r *Runner) enterPosition(ctx context.Context) error {
	if err := r.gate.Acquire(ctx, r.cfg.Code); err != nil {
		return err
	}
	defer r.gate.Release(r.cfg.Code)
	r.log.Info("acquired admission gate")

	r.log.Info("B1 entry threshold reached, opening position",
		zap.Int("qty", r.cfg.B1.Qty),
		zap.Float64("current_price", r.current),
	)
	if err := r.be.OpenPosition(ctx, r.cfg.AccNo, r.cfg.Code, r.cfg.B1.Qty); err != nil {
		return err
	}

	r.emitOpen(ctx, r.cfg.B1.Qty)
	r.setState(Holding)
	return nil
}

// holdCycle runs one steady-state monitoring pass.
func (r *Runner) holdCycle(ctx context.Context) error {
	last, ok, err := r.be.LatestTradePrice(ctx, r.cfg.Code)
	if err != nil {
		return err
	}
	if !ok {
		// The position was closed externally. Re-enter the buying path
		// right away instead of burning a cycle in NoPosition.
		r.log.Info("active position gone, re-entering")
		return r.enterPosition(ctx)
	}

	switch {
	case r.current >= last+r.cfg.S1.Price:
		r.log.Info("S1 exit threshold reached, closing position",
			zap.Float64("current_price", r.current),
			zap.Float64("latest_trade_price", last),
		)
		profit, err := r.be.ClosePosition(ctx, r.cfg.AccNo, r.cfg.Code, r.cfg.S1.Qty)
		switch {
		case errors.Is(err, backend.ErrNoActivePosition):
			// Already fully closed by another path, e.g. a manual sell.
			r.log.Info("close skipped, position already gone")
			return nil
		case err != nil:
			return err
		}
		r.emitClose(profit, r.cfg.S1.Qty)

	case r.current <= last-r.cfg.B1.Price:
		r.log.Info("B1 buy threshold reached, pyramiding",
			zap.Float64("current_price", r.current),
			zap.Float64("latest_trade_price", last),
		)
		if err := r.be.OpenPosition(ctx, r.cfg.AccNo, r.cfg.Code, r.cfg.B1.Qty); err != nil {
			return err
		}
		r.emitOpen(ctx, r.cfg.B1.Qty)
	}
	return nil
}

func (r *Runner) emitOpen(ctx context.Context, qty int) {
	price := r.current
	// The backtest ledger fills at the tick after the trigger; report the
	// actual fill price when the backend can tell us.
	if p, ok, err := r.be.LatestTradePrice(ctx, r.cfg.Code); err == nil && ok {
		price = p
	}
	r.notifier.TradeEvent(notify.Event{
		Type:       notify.EventOpen,
		Instrument: r.name,
		Code:       r.cfg.Code,
		Price:      price,
		Qty:        qty,
	})
}

// emitClose reports the profit the backend booked, so the notification never
// diverges from the ledger when entry and exit quantities differ.
func (r *Runner) emitClose(profit float64, qty int) {
	r.notifier.TradeEvent(notify.Event{
		Type:       notify.EventClose,
		Instrument: r.name,
		Code:       r.cfg.Code,
		Price:      r.current,
		Qty:        qty,
		Profit:     &profit,
	})
}
