package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/ats/config"
	"github.com/rustyeddy/ats/gate"
	"github.com/rustyeddy/ats/ledger"
	"github.com/rustyeddy/ats/notify"
	"github.com/rustyeddy/ats/pkg/logger"
	"github.com/rustyeddy/ats/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loops from a config file",
	Long: `Run one trading loop per instrument from a configuration file.

In backtest mode the loops replay the historical tick database and record
simulated fills into the trade ledger; the process exits once every
instrument's price series is exhausted.

Example:
  ats run -f configs/backtest.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Secrets (the Slack webhook) come from the environment, optionally a
	// .env file alongside the process.
	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	log := logger.Named("ats")
	log.Info("starting", zap.Bool("backtest", cfg.Backtest), zap.Int("instruments", len(cfg.Instruments)))

	if !cfg.Backtest {
		return fmt.Errorf("live mode requires a broker adapter binary; this build supports backtest only")
	}

	store, err := ledger.Open(cfg.HistoryDB, cfg.LedgerDB)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, in := range cfg.Instruments {
		store.RegisterInstrument(in.Code, in.Name)
	}

	var resume *config.ResumeStore
	if cfg.ResumeDB != "" {
		resume, err = config.OpenResumeStore(cfg.ResumeDB)
		if err != nil {
			return fmt.Errorf("open resume store: %w", err)
		}
		defer resume.Close()
	}

	webhook := cfg.Slack.WebhookURL
	if env := os.Getenv("SLACK_WEBHOOK_URL"); env != "" {
		webhook = env
	}
	notifier := notify.NewSlack(webhook, cfg.Slack.Channel)

	ctrl := runner.NewController(
		cfg.AccountNo,
		gate.New(),
		notifier,
		cfg.PollInterval(),
		cfg.StaggerInterval(),
	)

	for _, in := range cfg.Instruments {
		// Each runner replays through its own session so cursors never
		// interfere.
		if err := ctrl.AddRunner(in, store.Session()); err != nil {
			return fmt.Errorf("instrument %s: %w", in.Code, err)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("interrupt received, stopping runners")
		cancel()
	}()

	ctrl.RunAll(ctx)
	ctrl.WaitAll(ctx)

	var saver runner.ResumeSaver
	if resume != nil {
		saver = resume
	}
	snaps := ctrl.StopAndSaveAll(saver)

	for _, snap := range snaps {
		closed, err := store.ListClosed(snap.Code)
		if err != nil {
			log.Warn("list closed trades", zap.String("code", snap.Code), zap.Error(err))
			continue
		}
		var profit float64
		for _, t := range closed {
			profit += t.Profit
		}
		log.Info("instrument summary",
			zap.String("code", snap.Code),
			zap.Int("closed_trades", len(closed)),
			zap.Float64("realized_profit", profit),
		)
	}

	log.Info("done")
	return nil
}
