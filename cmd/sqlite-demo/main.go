package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/viant/sqlite-facade/config"
	"github.com/viant/sqlite-facade/db"
	"github.com/viant/sqlite-facade/demo"
	"github.com/viant/sqlite-facade/inspect"
	"github.com/viant/sqlite-facade/storage"
)

type options struct {
	Config     string   `short:"f" long:"config" description:"config file, yaml or toml"`
	Root       string   `short:"r" long:"root" description:"storage root directory"`
	Databases  []string `short:"d" long:"db" description:"database name, repeatable"`
	Mode       string   `short:"m" long:"mode" description:"open mode for --db databases" default:"c"`
	Concurrent int      `short:"c" long:"concurrent" description:"databases processed concurrently"`
	Report     bool     `long:"report" description:"print an inspection report per database"`
	Backup     bool     `long:"backup" description:"snapshot each database after the walkthrough"`
	Metrics    bool     `long:"metrics" description:"dump collected metrics on exit"`
	Dbg        bool     `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	fmt.Printf("sqlite-demo %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Printf("%v", err)
		}
		os.Exit(1)
	}

	setupLog(opts.Dbg)

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM) // cancel on SIGINT or SIGTERM
	go func() {
		sig := <-sigs
		log.Printf("[WARN] received signal: %v", sig)
		cancel()
	}()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	backend, err := storage.NewDir(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("can't open storage: %w", err)
	}
	log.Printf("[DEBUG] storage root %s, %d databases, concurrency %d", backend.Root(), len(cfg.Databases), cfg.Concurrency)

	reg := prometheus.NewRegistry()
	r := demo.Runner{Config: cfg, Backend: backend, Log: lgr.Default(), Metrics: db.NewMetrics(reg), Backup: opts.Backup}
	results, runErr := r.Run(ctx)
	for _, res := range results {
		if res.Name == "" {
			continue
		}
		fmt.Fprintf(out, "%s: %d rows in %v", res.Name, res.Rows, res.Duration) // nolint
		if res.Backup > 0 {
			fmt.Fprintf(out, ", backup %s/%s", demo.BackupDir, res.Name) // nolint
		}
		fmt.Fprintln(out) // nolint
	}

	if opts.Report {
		for _, d := range cfg.Databases {
			rep, err := inspect.Database(ctx, backend, d.Name)
			if err != nil {
				log.Printf("[WARN] can't inspect %s: %v", d.Name, err)
				continue
			}
			rep.Print(out)
		}
	}
	if opts.Metrics {
		if err := dumpMetrics(reg, out); err != nil {
			return err
		}
	}
	return runErr
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	if opts.Root != "" {
		cfg.Storage.Root = opts.Root
	}
	if len(opts.Databases) > 0 {
		cfg.Databases = cfg.Databases[:0]
		for _, name := range opts.Databases {
			cfg.Databases = append(cfg.Databases, config.Database{Name: name, Mode: opts.Mode})
		}
	}
	if opts.Concurrent > 0 {
		cfg.Concurrency = opts.Concurrent
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func dumpMetrics(g prometheus.Gatherer, out io.Writer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("can't gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return fmt.Errorf("can't write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)} // default to discard
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
