package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tradeview/internal/app"
	"tradeview/internal/backtest"
	"tradeview/internal/config"
	"tradeview/internal/domain"
	"tradeview/internal/store"
	"tradeview/internal/strategy"
	"tradeview/internal/util"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: tradeview <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  backtest     Run a backtest for one or more stocks\n")
	fmt.Fprintf(os.Stderr, "  strategies   List registered strategies\n")
	fmt.Fprintf(os.Stderr, "  symbols      List available and locally stored symbols\n")
	fmt.Fprintf(os.Stderr, "  version      Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "\nExample:\n")
	fmt.Fprintf(os.Stderr, "  tradeview backtest -strategy ma_cross_strategy -stock AAPL\n\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("tradeview %s\n", version)
	case "strategies":
		withApp(func(_ context.Context, a *app.App) error { return listStrategies(a) })
	case "symbols":
		withApp(listSymbols)
	case "backtest":
		opts, err := parseBacktestFlags(os.Args[2:])
		if err != nil {
			os.Exit(2)
		}
		withApp(func(ctx context.Context, a *app.App) error { return runBacktests(ctx, a, opts) })
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

// withApp loads config, builds the App and runs fn until it returns or a
// signal arrives.
func withApp(fn func(context.Context, *app.App) error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("initializing: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := fn(ctx, a); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		a.Close()
		os.Exit(1)
	}
}

func listStrategies(a *app.App) error {
	fmt.Println(headerStyle.Render("Strategies"))
	for _, d := range a.Registry.Descriptors() {
		fmt.Printf("  %s  %s v%s\n", labelStyle.Render(d.ID), d.Name, d.Version)
		if d.Description != "" {
			fmt.Printf("      %s\n", dimStyle.Render(d.Description))
		}
		for _, p := range d.Params {
			fmt.Printf("      %-12s %-6s default=%v\n", p.Name, p.Type, p.Default)
		}
	}
	return nil
}

func listSymbols(ctx context.Context, a *app.App) error {
	local, err := a.Feed.ListLocal(ctx)
	if err != nil {
		return err
	}
	all, err := a.Feed.Symbols(ctx)
	if err != nil {
		return err
	}
	fmt.Println(headerStyle.Render("Local data"))
	if len(local) == 0 {
		fmt.Println(dimStyle.Render("  (none)"))
	}
	for _, l := range local {
		fmt.Printf("  %-6s %s .. %s  %d bars\n", labelStyle.Render(l.Symbol), l.StartDate, l.EndDate, l.Records)
	}
	fmt.Println(headerStyle.Render("Available"))
	fmt.Printf("  %s\n", strings.Join(all, " "))
	return nil
}

// ---------------------------------------------------------------------------
// backtest
// ---------------------------------------------------------------------------

type backtestOptions struct {
	strategy string
	stocks   []string
	start    string
	end      string
	capital  float64
	params   string
	configID string
	output   string
	save     bool
	parallel int
}

func parseBacktestFlags(args []string) (backtestOptions, error) {
	var opts backtestOptions
	var stocks string
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.StringVar(&opts.strategy, "strategy", "", "strategy identifier (see `tradeview strategies`)")
	fs.StringVar(&stocks, "stock", "", "comma-separated stock symbols, e.g. AAPL,MSFT")
	fs.StringVar(&opts.start, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&opts.end, "end", "", "end date (YYYY-MM-DD)")
	fs.Float64Var(&opts.capital, "capital", 0, "initial capital (default from config)")
	fs.StringVar(&opts.params, "params", "", `strategy parameters as JSON, e.g. '{"fast_period":5}'`)
	fs.StringVar(&opts.configID, "config", "", "saved parameter set ID")
	fs.StringVar(&opts.output, "output", "", "write the report JSON to this file")
	fs.BoolVar(&opts.save, "save", false, "persist the run in the run history")
	fs.IntVar(&opts.parallel, "parallel", 0, "max concurrent runs (default from config)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	for _, s := range strings.Split(stocks, ",") {
		if s = domain.NormalizeSymbol(s); s != "" {
			opts.stocks = append(opts.stocks, s)
		}
	}
	return opts, nil
}

func runBacktests(ctx context.Context, a *app.App, opts backtestOptions) error {
	params := strategy.Params{}
	if opts.configID != "" {
		ps, err := a.ParamSets.Get(ctx, opts.configID)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", opts.configID, err)
		}
		if opts.strategy == "" {
			opts.strategy = ps.Strategy
		}
		if len(opts.stocks) == 0 && ps.Symbol != "" {
			opts.stocks = []string{ps.Symbol}
		}
		for k, v := range ps.Params {
			params[k] = v
		}
	}
	if opts.params != "" {
		var explicit map[string]any
		if err := json.Unmarshal([]byte(opts.params), &explicit); err != nil {
			return fmt.Errorf("parsing -params: %w", err)
		}
		for k, v := range explicit {
			params[k] = v
		}
	}
	if opts.strategy == "" || len(opts.stocks) == 0 {
		usage()
		return fmt.Errorf("-strategy and -stock are required")
	}

	r, err := domain.ParseDateRange(opts.start, opts.end)
	if err != nil {
		return err
	}
	r = a.Feed.Resolve(r)

	reqs := make([]backtest.Request, len(opts.stocks))
	for i, sym := range opts.stocks {
		reqs[i] = backtest.Request{
			Strategy:       opts.strategy,
			Symbol:         sym,
			Range:          r,
			Params:         params,
			InitialCapital: opts.capital,
		}
	}

	parallel := opts.parallel
	if parallel <= 0 {
		parallel = a.Config.Backtest.MaxParallel
	}
	reports, err := a.Runner.RunAll(ctx, reqs, parallel)
	if err != nil {
		return err
	}

	for i, rep := range reports {
		req := reqs[i]
		fmt.Println(renderSummary(req, rep))

		if opts.output != "" {
			path := outputPath(a.Config.Storage.ResultsDir, opts.output, req.Symbol, len(reports) > 1)
			if err := rep.SaveJSON(path); err != nil {
				return err
			}
			fmt.Println(dimStyle.Render("report saved to " + path))
		}
		if opts.save {
			id, err := saveRun(ctx, a.DB, req, rep)
			if err != nil {
				return err
			}
			fmt.Println(dimStyle.Render("run saved as " + id))
		}
	}
	return nil
}

// outputPath places bare file names under resultsDir and, when several
// stocks are run, suffixes the symbol before the extension.
func outputPath(resultsDir, output, symbol string, multi bool) string {
	if multi {
		ext := filepath.Ext(output)
		output = strings.TrimSuffix(output, ext) + "_" + symbol + ext
	}
	if filepath.Dir(output) == "." && resultsDir != "" {
		return filepath.Join(resultsDir, output)
	}
	return output
}

func saveRun(ctx context.Context, runs store.RunStore, req backtest.Request, rep *backtest.Report) (string, error) {
	body, err := json.Marshal(rep)
	if err != nil {
		return "", err
	}
	run := &store.RunRecord{
		ID:        uuid.NewString(),
		Strategy:  req.Strategy,
		Symbol:    req.Symbol,
		StartDate: req.Range.Start.Format(domain.DateLayout),
		EndDate:   req.Range.End.Format(domain.DateLayout),
		Params:    req.Params,
		CreatedAt: time.Now().UTC(),
		Report:    body,
	}
	if err := runs.SaveRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}
