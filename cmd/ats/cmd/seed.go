package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/ats/config"
	"github.com/rustyeddy/ats/ledger"
	"github.com/rustyeddy/ats/market"
)

var seedCmd = &cobra.Command{
	Use:   "seed <csv-file>",
	Short: "Load historical ticks into the history database",
	Long: `Load historical tick rows from a CSV file into the configured history
database, ready for backtest replay.

The CSV must carry a header row; transaction_time and current_price are
required, volume and open_price/high_price/low_price are optional. Every
row is stored under the instrument code given with --code.

Example:
  ats seed -f configs/backtest.yaml --code 233740 data/233740.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

var (
	seedConfigPath string
	seedCode       string
)

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	seedCmd.Flags().StringVar(&seedCode, "code", "", "instrument code for the loaded rows (required)")
	seedCmd.MarkFlagRequired("config")
	seedCmd.MarkFlagRequired("code")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(seedConfigPath)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ticks, err := readTicksCSV(f, seedCode)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	store, err := ledger.Open(cfg.HistoryDB, cfg.LedgerDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SeedTicks(ticks); err != nil {
		return fmt.Errorf("seed history: %w", err)
	}

	cmd.Printf("seeded %d ticks for %s into %s\n", len(ticks), seedCode, cfg.HistoryDB)
	return nil
}

// readTicksCSV parses header-addressed tick rows. Rows with an unparseable
// transaction time or price abort the load so a partial file never half-seeds.
func readTicksCSV(r io.Reader, code string) ([]market.Tick, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"transaction_time", "current_price"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(rec []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(rec, name), 64)
		return v
	}

	var ticks []market.Tick
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts := field(rec, "transaction_time")
		if _, err := time.Parse(market.TimeLayout, ts); err != nil {
			return nil, fmt.Errorf("line %d: bad transaction_time %q", line, ts)
		}
		price, err := strconv.ParseFloat(field(rec, "current_price"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad current_price %q", line, field(rec, "current_price"))
		}
		volume, _ := strconv.ParseInt(field(rec, "volume"), 10, 64)

		ticks = append(ticks, market.Tick{
			Code:            code,
			Price:           price,
			Volume:          volume,
			TransactionTime: ts,
			Open:            num(rec, "open_price"),
			High:            num(rec, "high_price"),
			Low:             num(rec, "low_price"),
		})
	}

	if len(ticks) == 0 {
		return nil, fmt.Errorf("no tick rows")
	}
	return ticks, nil
}
