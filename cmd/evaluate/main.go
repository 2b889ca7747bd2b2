package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"option-screener-go/internal/codec"
	"option-screener-go/internal/config"
	"option-screener-go/internal/database"
	"option-screener-go/internal/evaluator"
	"option-screener-go/internal/export"
	"option-screener-go/internal/logger"
	"option-screener-go/internal/models"
	"option-screener-go/internal/persistence"
	"option-screener-go/internal/ranking"
	"option-screener-go/internal/session"
)

var errNoTrades = errors.New("no saved trades to evaluate")

type options struct {
	key ranking.SortKey
	dir ranking.Direction
	out string
}

func main() {
	configDir := flag.String("config", "./configs", "directory containing config.yml")
	sortBy := flag.String("sort", string(ranking.KeyScore), "column to rank results by")
	asc := flag.Bool("asc", false, "rank ascending instead of descending")
	out := flag.String("out", "", "write the results as CSV to this file")
	flag.Parse()

	key, err := ranking.ParseSortKey(*sortBy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	opts := options{key: key, dir: ranking.Desc, out: *out}
	if *asc {
		opts.dir = ranking.Asc
	}

	// Load application configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, &cfg, log, opts)
	stop()
	switch {
	case errors.Is(err, errNoTrades):
		log.Warn("Nothing to do", zap.String("dsn", cfg.Database.DSN), zap.Error(err))
	case err != nil:
		log.Error("Evaluation run failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, opts options) error {
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	lifecycle := persistence.New(database.NewSlotStore(db), log)
	snap := lifecycle.Load(ctx)
	if !snap.Loaded[persistence.SlotTrades] || len(snap.Trades) == 0 {
		return errNoTrades
	}
	for i, t := range snap.Trades {
		if bad := malformedDates(t); len(bad) > 0 {
			log.Warn("Trade has malformed dates", zap.Int("row", i), zap.String("symbol", t.Symbol), zap.Strings("fields", bad))
		}
	}

	client := evaluator.NewRestClient(&cfg.Evaluator, log)
	sess := session.Restore(log, client, lifecycle, snap)
	if err := sess.Evaluate(ctx); err != nil {
		return err
	}

	if err := summarize(os.Stdout, ranking.Rank(sess.Results(), opts.key, opts.dir)); err != nil {
		return fmt.Errorf("print results: %w", err)
	}

	if opts.out != "" {
		results := sess.Results()
		if err := writeFile(opts.out, results); err != nil {
			return fmt.Errorf("write %s: %w", opts.out, err)
		}
		log.Info("Results exported", zap.String("path", opts.out), zap.Int("rows", len(results)))
	}
	return nil
}

// malformedDates names the date fields of t that are set but not YYYY-MM-DD.
func malformedDates(t models.TradeInput) []string {
	var bad []string
	if t.TradeDate != "" && !codec.IsDate(t.TradeDate) {
		bad = append(bad, "tradeDate")
	}
	if t.ExpirationDate != "" && !codec.IsDate(t.ExpirationDate) {
		bad = append(bad, "expirationDate")
	}
	return bad
}

// points is the breakdown subtotal of r: the evaluator's final figure when it sent
// one, otherwise the sum of the itemized parts. It is "-" without a breakdown.
func points(r models.ResultRow) string {
	var earned float64
	switch {
	case r.PointsFinal != nil:
		earned = *r.PointsFinal
	case len(r.Breakdown) > 0:
		earned = r.EarnedTotal()
	default:
		return "-"
	}
	if r.TotalPossible != nil {
		return codec.Short(earned) + "/" + codec.Short(*r.TotalPossible)
	}
	return codec.Short(earned)
}

// summarize prints one aligned line per result.
func summarize(w io.Writer, rows []models.ResultRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTYPE\tEXPIRES\tSTRIKE\tPREMIUM\tANNUAL ROI\tSCORE\tPOINTS\tSUGGESTION")
	for _, r := range rows {
		suggestion := r.Suggestion
		if r.HardFail {
			suggestion += " (hard fail)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%.0f\t%s\t%s\n",
			r.Symbol,
			r.Type,
			codec.ShortDate(r.ExpirationDate),
			codec.USD(r.Strike, 2),
			codec.USD(r.Premium, 2),
			codec.Format(codec.Value{Number: r.AnnualROI}, codec.Percent),
			r.Score,
			points(r),
			suggestion,
		)
	}
	return tw.Flush()
}

func writeFile(path string, rows []models.ResultRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
