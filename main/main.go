package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/gcfg.v1"

	"github.com/JulianSchoen/WallGo"
	"github.com/JulianSchoen/WallGo/collision"
)

func main() {
	var (
		configPath    string
		exampleConfig bool
		threads       int
	)
	flag.StringVar(
		&configPath, "Config", "",
		"Configuration file describing the particle content, model "+
			"parameters and integration settings.",
	)
	flag.BoolVar(
		&exampleConfig, "ExampleConfig", false,
		"Prints an example configuration file to stdout and exits.",
	)
	flag.IntVar(
		&threads, "Threads", 0,
		"Number of worker goroutines. Overrides the Workers config "+
			"setting when positive.",
	)
	flag.Parse()

	if exampleConfig {
		fmt.Print(exampleConfigText + "\n")
		return
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr,
			"wallgo: no -Config file given. Run with -ExampleConfig for "+
				"an annotated example.")
		os.Exit(1)
	}

	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "wallgo: reading %s: %v\n", configPath, err)
		os.Exit(1)
	}
	if err := validateConfig(wrap); err != nil {
		fmt.Fprintf(os.Stderr, "wallgo: %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log := newLogger(wrap.Collision.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, wrap, threads); err != nil {
		log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
	}))
}

func run(ctx context.Context, log *slog.Logger, wrap *ConfigWrapper, threads int) error {
	con := &wrap.Collision

	m := wallgo.NewManager(con.BasisSize, log)

	vars := make(map[string]float64, len(wrap.Variable))
	for name, v := range wrap.Variable {
		vars[name] = v.Value
	}
	if err := m.DefineVariables(vars); err != nil {
		return err
	}

	// Definition order fixes the particle indices used by the matrix
	// element file.
	for _, name := range con.Particles {
		species, err := wrap.Particle[name].Species(name)
		if err != nil {
			return err
		}
		if err := m.DefineParticle(species); err != nil {
			return err
		}
	}

	opts := con.Options()
	if threads > 0 {
		opts.Workers = threads
	}
	m.SetIntegrationOptions(opts)
	m.SetVerbosity(collision.Verbosity{
		ProgressInterval: con.ProgressInterval,
	})
	m.SetMatrixElementFile(con.MatrixElementFile)
	m.SetOutputDirectory(con.OutputDirectory)

	if err := m.SetupCollisionIntegrals(); err != nil {
		return err
	}
	// Fail on an unwritable output path now, not after hours of
	// integration.
	if err := os.MkdirAll(con.OutputDirectory, 0755); err != nil {
		return err
	}
	log.Info("setup complete",
		"outOfEquilibrium", m.OutOfEquilibriumParticles(),
		"basisSize", con.BasisSize,
		"independentIntegrals", m.CountIndependentIntegrals())

	start := time.Now()
	res, err := m.CalculateAllIntegrals(ctx)
	if err != nil {
		return err
	}
	log.Info("collision tensor evaluated", "elapsed", time.Since(start))

	for pair, pts := range res.FailedPoints() {
		log.Warn("non-converged grid points",
			"pair", pair, "count", len(pts))
	}

	return m.ExportResults(res)
}
