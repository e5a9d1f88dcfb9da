// Command classify tunes a threshold seizure detector on a cohort with
// leave-one-out cross-validation and writes the per-subject results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/seizure-classifier/internal/config"
	"github.com/banshee-data/seizure-classifier/internal/dataset"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/report"
	"github.com/banshee-data/seizure-classifier/internal/store"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
	"github.com/banshee-data/seizure-classifier/internal/timeutil"
	"github.com/banshee-data/seizure-classifier/internal/version"
)

var (
	configPath  = flag.String("config", "", "Classifier config JSON (defaults to "+config.DefaultConfigPath+" if present)")
	datasetPath = flag.String("dataset", "", "Cohort dataset JSON")
	outputDir   = flag.String("output-dir", "results", "Directory for CSV, plot and HTML output")
	dbPath      = flag.String("db", "", "SQLite database to record the run in (optional)")
	workers     = flag.Int("workers", 0, "Sweep workers; overrides the config when > 0")
	noPlots     = flag.Bool("no-plots", false, "Skip PNG plots")
	noHTML      = flag.Bool("no-html", false, "Skip the HTML front page")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options are the resolved command-line settings of one run.
type options struct {
	ConfigPath  string
	DatasetPath string
	OutputDir   string
	DBPath      string
	Workers     int
	NoPlots     bool
	NoHTML      bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *datasetPath == "" {
		log.Fatal("Dataset path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:  *configPath,
		DatasetPath: *datasetPath,
		OutputDir:   *outputDir,
		DBPath:      *dbPath,
		Workers:     *workers,
		NoPlots:     *noPlots,
		NoHTML:      *noHTML,
	}
	if _, err := run(ctx, fsutil.OSFileSystem{}, timeutil.RealClock{}, opts); err != nil {
		log.Fatalf("classification failed: %v", err)
	}
}

// loadConfig reads the config at path. An empty path uses the defaults file
// when it exists and the built-in defaults otherwise.
func loadConfig(fsys fsutil.FileSystem, path string) (*config.ClassifierConfig, error) {
	if path == "" {
		if !fsys.Exists(config.DefaultConfigPath) {
			monitoring.Logf("no config given, using built-in defaults")
			return config.DefaultClassifierConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadClassifierConfig(fsys, path)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("loaded config from %s", path)
	return cfg, nil
}

// run executes one classification and returns the written output paths.
func run(ctx context.Context, fsys fsutil.FileSystem, clock timeutil.Clock, opts options) ([]string, error) {
	cfg, err := loadConfig(fsys, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	sweepCfg, err := cfg.SweepConfig(opts.Workers)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.Load(fsys, opts.DatasetPath, cfg.DatasetOptions())
	if err != nil {
		return nil, err
	}
	if len(ds.Recordings) < 2 {
		return nil, fmt.Errorf("cross-validation needs at least 2 recordings, got %d", len(ds.Recordings))
	}

	res, err := sweep.NewRunner(clock).Run(ctx, ds.SweepRecordings(), sweepCfg)
	if err != nil {
		return nil, err
	}

	summary, err := report.Summarise(res, ds)
	if err != nil {
		return nil, fmt.Errorf("summarising run %s: %w", res.RunID, err)
	}
	w := report.NewWriter(fsys, opts.OutputDir, report.Options{
		Plots: cfg.GetWritePlots() && !opts.NoPlots,
		HTML:  cfg.GetWriteHTML() && !opts.NoHTML,
	})
	written, err := w.Write(res, ds, summary)
	if err != nil {
		return written, err
	}

	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return written, err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, res); err != nil {
			return written, err
		}
		monitoring.Logf("saved run %s to %s", res.RunID, opts.DBPath)
	}

	m := summary.Mean
	monitoring.Logf("run %s: mean event sensitivity %.3f, precision %.3f, test AUC %.3f",
		res.RunID, m.Score.EventSensitivity, m.Score.EventPrecision, m.TestAUC)
	return written, nil
}
