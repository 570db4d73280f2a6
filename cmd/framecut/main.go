package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"framecut/internal/calibration"
	"framecut/internal/filesystem"
	"framecut/internal/ledger"
	"framecut/internal/logging"
	"framecut/internal/matte"
	"framecut/internal/media"
	"framecut/internal/memory"
	"framecut/internal/metrics"
	"framecut/internal/pipeline"
	"framecut/internal/publish"
	"framecut/internal/server"
	"framecut/internal/startup"
	"framecut/internal/transcoder"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "mask", "crop":
		return runBatch(ctx, command, rest, stderr)
	case "serve":
		return runServe(ctx, rest, stderr)
	case "history":
		return runHistory(ctx, rest, stdout, stderr)
	case "calibration":
		return runCalibration(rest, stdout, stderr)
	case "version":
		info := startup.GetBuildInfo()
		fmt.Fprintf(stdout, "framecut %s (commit %s, built %s, %s %s/%s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return exitUsage
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_' for display.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "framecut - frame-relative masking and cropping of images and videos")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: framecut <command> [flags] [file]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  mask         make the white backdrop outside the frame transparent")
	fmt.Fprintln(w, "  crop         crop footage to the inner edge of the frame")
	fmt.Fprintln(w, "  serve        run the calibration preview server")
	fmt.Fprintln(w, "  history      list recorded runs from the ledger")
	fmt.Fprintln(w, "  calibration  print the effective calibration as YAML")
	fmt.Fprintln(w, "  version      print build information")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration is read from the environment (INPUT_DIR, OUTPUT_DIR, ...);")
	fmt.Fprintln(w, "flags override it. Run 'framecut <command> -h' for flags.")
}

// batchFlags are the mask and crop flags. Only flags given explicitly
// override the environment.
type batchFlags struct {
	fs            *flag.FlagSet
	input         string
	output        string
	strategy      string
	threshold     int
	calibration   string
	workDir       string
	ledger        string
	skipUnchanged bool
	imagesOnly    bool
	videosOnly    bool
	noPublish     bool
}

func newBatchFlags(command string, stderr io.Writer) *batchFlags {
	f := &batchFlags{fs: flag.NewFlagSet(command, flag.ContinueOnError)}
	f.fs.SetOutput(stderr)
	f.fs.StringVar(&f.input, "input", "", "input directory or file (INPUT_DIR)")
	f.fs.StringVar(&f.output, "output", "", "output directory (OUTPUT_DIR)")
	f.fs.StringVar(&f.strategy, "strategy", "", "video masking strategy: stream or frames (VIDEO_STRATEGY)")
	f.fs.IntVar(&f.threshold, "threshold", int(matte.DefaultThreshold), "white threshold 0-255 (WHITE_THRESHOLD)")
	f.fs.StringVar(&f.calibration, "calibration", "", "calibration YAML file (CALIBRATION_FILE)")
	f.fs.StringVar(&f.workDir, "work-dir", "", "parent directory for frame workspaces (WORK_DIR)")
	f.fs.StringVar(&f.ledger, "ledger", "", "SQLite run ledger path (LEDGER_PATH)")
	f.fs.BoolVar(&f.skipUnchanged, "skip-unchanged", false, "skip inputs already processed with the same calibration (SKIP_UNCHANGED)")
	f.fs.BoolVar(&f.imagesOnly, "images-only", false, "process images only")
	f.fs.BoolVar(&f.videosOnly, "videos-only", false, "process videos only")
	f.fs.BoolVar(&f.noPublish, "no-publish", false, "do not upload outputs even when COS_BUCKET_URL is set")
	return f
}

// apply copies explicitly set flags and the positional file onto cfg.
func (f *batchFlags) apply(command string) func(*startup.Config) {
	return func(cfg *startup.Config) {
		cfg.Mode = command
		f.fs.Visit(func(fl *flag.Flag) {
			switch fl.Name {
			case "input":
				cfg.InputDir = f.input
			case "output":
				cfg.OutputDir = f.output
			case "strategy":
				cfg.VideoStrategy = f.strategy
			case "threshold":
				cfg.WhiteThreshold = f.threshold
			case "calibration":
				cfg.CalibrationFile = f.calibration
			case "work-dir":
				cfg.WorkDir = f.workDir
			case "ledger":
				cfg.LedgerPath = f.ledger
			case "skip-unchanged":
				cfg.SkipUnchanged = f.skipUnchanged
			case "no-publish":
				if f.noPublish {
					cfg.COSBucketURL = ""
				}
			}
		})
		cfg.ImagesOnly = f.imagesOnly
		cfg.VideosOnly = f.videosOnly
		if f.fs.NArg() > 0 {
			cfg.InputDir = f.fs.Arg(0)
		}
	}
}

func runBatch(ctx context.Context, command string, args []string, stderr io.Writer) int {
	flags := newBatchFlags(command, stderr)
	if err := flags.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if flags.fs.NArg() > 1 {
		fmt.Fprintln(stderr, "at most one input file or directory may be given")
		return exitUsage
	}

	startTime := time.Now()
	cfg, err := startup.LoadConfig(flags.apply(command))
	if err != nil {
		logging.Error("Configuration error: %v", pipeline.ConfigError(err))
		return exitUsage
	}

	if _, err := memory.ConfigureFromEnv(); err != nil {
		logging.Warn("%v", err)
	}
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	trans := transcoder.New(transcoder.Config{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		Timeout:      cfg.FFmpegTimeout,
		VideoBitrate: cfg.VideoBitrate,
		CropCRF:      cfg.CropCRF,
		CropPreset:   cfg.CropPreset,
	})
	defer trans.Cleanup()
	startup.LogTranscoderInit(cfg.FFmpegPath, cfg.FFprobePath)

	codec := media.NewCodec()
	if cfg.UseVips && cfg.CalibrationMode() == calibration.ModeCrop {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, cropping stills in memory: %v", err)
		} else {
			defer media.ShutdownVips()
		}
	}
	startup.LogCodecInit(media.IsVipsAvailable())

	p := pipeline.New(pipeline.Options{
		Mode:          cfg.CalibrationMode(),
		Calibration:   cfg.Calibration,
		Threshold:     matte.Threshold(cfg.WhiteThreshold),
		OutputDir:     cfg.OutputDir,
		WorkDir:       cfg.WorkDir,
		Strategy:      pipeline.Strategy(cfg.VideoStrategy),
		Filter:        filterFor(cfg),
		SkipUnchanged: cfg.SkipUnchanged,
	}, trans, codec)

	if cfg.LedgerPath != "" {
		ledgerStart := time.Now()
		l, err := ledger.Open(ctx, cfg.LedgerPath)
		if err != nil {
			logging.Warn("Ledger disabled: %v", err)
		} else {
			defer closeLedger(l)
			startup.LogLedgerInit(cfg.LedgerPath, time.Since(ledgerStart))
			p.SetLedger(l)
		}
	}

	if cfg.PublishEnabled() {
		pub, err := publish.New(publish.Config{
			BucketURL: cfg.COSBucketURL,
			SecretID:  cfg.COSSecretID,
			SecretKey: cfg.COSSecretKey,
			Prefix:    cfg.COSPrefix,
		})
		if err != nil {
			logging.Error("Configuration error: %v", pipeline.ConfigError(err))
			return exitUsage
		}
		p.SetPublisher(pub)
	}

	inputs, err := pipeline.Discover(cfg.InputDir, filterFor(cfg))
	if err != nil {
		logging.Error("%v", err)
		return exitFailure
	}
	if len(inputs) == 0 {
		logging.Warn("No supported files found in %s", cfg.InputDir)
		return exitOK
	}
	logging.Info("Startup completed in %v", time.Since(startTime).Round(time.Millisecond))

	rep := p.RunBatch(ctx, inputs)

	startup.LogRunComplete(startup.RunSummary{
		RunID:     rep.RunID,
		Succeeded: rep.Succeeded,
		Failed:    rep.Failed,
		Skipped:   rep.Skipped,
		Duration:  rep.Duration,
	})
	for _, res := range rep.Failures() {
		logging.Error("  %v", res.Err)
	}
	if rep.Canceled {
		logging.Warn("Run canceled, %d files not started", rep.NotStarted)
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logging.Warn("Failed to write metrics textfile: %v", err)
		}
	}

	if rep.Failed > 0 || rep.Canceled {
		return exitFailure
	}
	return exitOK
}

func filterFor(cfg *startup.Config) pipeline.Filter {
	switch {
	case cfg.ImagesOnly:
		return pipeline.FilterImages
	case cfg.VideosOnly:
		return pipeline.FilterVideos
	default:
		return pipeline.FilterAll
	}
}

func closeLedger(l *ledger.Ledger) {
	if err := l.Close(); err != nil {
		logging.Warn("Failed to close ledger: %v", err)
	}
}

// loadCalibration reads the environment and an optional override file
// without touching input or output directories.
func loadCalibration(file string) (*startup.Config, error) {
	cfg, err := startup.ParseEnv()
	if err != nil {
		return nil, err
	}
	if file != "" {
		cfg.CalibrationFile = file
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LoadCalibration(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address (LISTEN_ADDR)")
	calib := fs.String("calibration", "", "calibration YAML file (CALIBRATION_FILE)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	startTime := time.Now()
	cfg, err := loadCalibration(*calib)
	if err != nil {
		logging.Error("Configuration error: %v", pipeline.ConfigError(err))
		return exitUsage
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	srv := server.New(cfg.Calibration, matte.Threshold(cfg.WhiteThreshold))
	startup.LogHTTPRoutes(srv.Router())
	startup.LogServerStarted(cfg.ListenAddr, time.Since(startTime))

	if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logging.Error("Server error: %v", err)
		return exitFailure
	}
	startup.LogShutdownInitiated("interrupt")
	startup.LogShutdownStepComplete("HTTP server stopped")
	startup.LogShutdownComplete()
	return exitOK
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("ledger", os.Getenv("LEDGER_PATH"), "SQLite run ledger path (LEDGER_PATH)")
	limit := fs.Int("limit", 20, "number of runs to list")
	runID := fs.String("run", "", "list the per-file results of one run")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *path == "" {
		fmt.Fprintln(stderr, "history needs -ledger or LEDGER_PATH")
		return exitUsage
	}
	if _, err := os.Stat(*path); err != nil {
		fmt.Fprintf(stderr, "Error: ledger not readable: %v\n", err)
		return exitFailure
	}

	l, err := ledger.Open(ctx, *path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer closeLedger(l)

	if *runID != "" {
		recs, err := l.Results(ctx, *runID)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		printResults(stdout, recs)
		return exitOK
	}

	runs, err := l.History(ctx, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	printRuns(stdout, runs)
	return exitOK
}

func printRuns(w io.Writer, runs []ledger.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tSTARTED\tDURATION\tOK\tFAILED\tSKIPPED\tSTATE")
	for _, r := range runs {
		duration, state := "-", "running"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
			state = "done"
			if r.Canceled {
				state = "canceled"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.Mode, r.StartedAt.Local().Format(time.DateTime), duration,
			r.Succeeded, r.Failed, r.Skipped, state)
	}
	tw.Flush()
}

func printResults(w io.Writer, recs []ledger.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tSTATUS\tFRAMES\tDURATION\tOUTPUT / ERROR")
	for _, r := range recs {
		detail := filepath.Base(r.Output)
		if r.Status == ledger.StatusFailed {
			detail = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			filepath.Base(r.Input), r.Status, r.Frames, r.Duration.Round(time.Millisecond), detail)
	}
	tw.Flush()
}

func runCalibration(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("calibration", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "calibration YAML file to merge over the defaults (CALIBRATION_FILE)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadCalibration(*file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	data, err := calibration.Marshal(cfg.Calibration)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "# fingerprint: %s\n", cfg.Calibration.Fingerprint())
	if _, err := stdout.Write(data); err != nil {
		return exitFailure
	}
	return exitOK
}
