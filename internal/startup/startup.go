package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"framecut/internal/calibration"
	"framecut/internal/logging"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Video masking strategies.
const (
	StrategyStream = "stream"
	StrategyFrames = "frames"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	InputDir        string        `env:"INPUT_DIR"        envDefault:"input"`
	OutputDir       string        `env:"OUTPUT_DIR"       envDefault:"output"`
	Mode            string        `env:"MODE"             envDefault:"mask"`
	WhiteThreshold  int           `env:"WHITE_THRESHOLD"  envDefault:"250"`
	CalibrationFile string        `env:"CALIBRATION_FILE"`
	VideoStrategy   string        `env:"VIDEO_STRATEGY"   envDefault:"stream"`
	WorkDir         string        `env:"WORK_DIR"`
	FFmpegPath      string        `env:"FFMPEG_PATH"      envDefault:"ffmpeg"`
	FFprobePath     string        `env:"FFPROBE_PATH"     envDefault:"ffprobe"`
	FFmpegTimeout   time.Duration `env:"FFMPEG_TIMEOUT"   envDefault:"0s"`
	VideoBitrate    string        `env:"VIDEO_BITRATE"    envDefault:"2M"`
	CropCRF         int           `env:"CROP_CRF"         envDefault:"18"`
	CropPreset      string        `env:"CROP_PRESET"      envDefault:"fast"`
	LedgerPath      string        `env:"LEDGER_PATH"`
	SkipUnchanged   bool          `env:"SKIP_UNCHANGED"   envDefault:"false"`
	MetricsTextfile string        `env:"METRICS_TEXTFILE"`
	UseVips         bool          `env:"USE_VIPS"         envDefault:"true"`
	ListenAddr      string        `env:"LISTEN_ADDR"      envDefault:":8080"`
	COSBucketURL    string        `env:"COS_BUCKET_URL"`
	COSSecretID     string        `env:"COS_SECRET_ID"`
	COSSecretKey    string        `env:"COS_SECRET_KEY"`
	COSPrefix       string        `env:"COS_PREFIX"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`

	// Filter flags, set from the command line only
	ImagesOnly bool `env:"-"`
	VideosOnly bool `env:"-"`

	// Derived
	Calibration calibration.Set `env:"-"`
}

// ParseEnv reads the configuration from the environment without validating
// or logging it.
func ParseEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	if _, err := calibration.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: MODE: %w", ErrInvalidConfig, err)
	}
	switch c.VideoStrategy {
	case StrategyStream, StrategyFrames:
	default:
		return fmt.Errorf("%w: VIDEO_STRATEGY %q (want stream or frames)", ErrInvalidConfig, c.VideoStrategy)
	}
	if c.WhiteThreshold < 0 || c.WhiteThreshold > 255 {
		return fmt.Errorf("%w: WHITE_THRESHOLD %d out of range 0-255", ErrInvalidConfig, c.WhiteThreshold)
	}
	if c.FFmpegTimeout < 0 {
		return fmt.Errorf("%w: FFMPEG_TIMEOUT must not be negative", ErrInvalidConfig)
	}
	if c.CropCRF < 0 || c.CropCRF > 51 {
		return fmt.Errorf("%w: CROP_CRF %d out of range 0-51", ErrInvalidConfig, c.CropCRF)
	}
	if c.ImagesOnly && c.VideosOnly {
		return fmt.Errorf("%w: images-only and videos-only are mutually exclusive", ErrInvalidConfig)
	}
	if c.InputDir != "" && c.OutputDir != "" && sameDir(c.InputDir, c.OutputDir) {
		return fmt.Errorf("%w: INPUT_DIR and OUTPUT_DIR must differ", ErrInvalidConfig)
	}
	if c.SkipUnchanged && c.LedgerPath == "" {
		return fmt.Errorf("%w: SKIP_UNCHANGED requires LEDGER_PATH", ErrInvalidConfig)
	}
	return nil
}

func sameDir(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// CalibrationMode returns the parsed mode. Call after Validate.
func (c *Config) CalibrationMode() calibration.Mode {
	m, _ := calibration.ParseMode(c.Mode)
	return m
}

// PublishEnabled reports whether outputs are uploaded after commit.
func (c *Config) PublishEnabled() bool {
	return c.COSBucketURL != ""
}

// LoadCalibration resolves the effective calibration set, starting from the
// compiled-in defaults.
func (c *Config) LoadCalibration() error {
	set := calibration.Default()
	if c.CalibrationFile != "" {
		loaded, err := calibration.Load(c.CalibrationFile)
		if err != nil {
			return fmt.Errorf("%w: CALIBRATION_FILE: %w", ErrInvalidConfig, err)
		}
		set = loaded
	}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("%w: calibration: %w", ErrInvalidConfig, err)
	}
	c.Calibration = set
	return nil
}

// LoadConfig loads configuration from the environment, applies override,
// validates it and prepares the output and work directories. The resolved
// configuration is logged in sections.
func LoadConfig(override func(*Config)) (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := ParseEnv()
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	cfg.logValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LoadCalibration(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if cfg.InputDir, err = filepath.Abs(cfg.InputDir); err != nil {
		return nil, fmt.Errorf("failed to resolve input path: %w", err)
	}
	logging.Info("  Input (absolute):  %s", cfg.InputDir)

	if cfg.OutputDir, err = filepath.Abs(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output (absolute): %s", cfg.OutputDir)

	if _, err := os.Stat(cfg.InputDir); err != nil {
		return nil, fmt.Errorf("input not accessible: %w", err)
	}

	if err := ensureDirectory(cfg.OutputDir, "output"); err != nil {
		return nil, fmt.Errorf("output directory error: %w", err)
	}
	logging.Debug("  Testing output directory write access...")
	if err := testWriteAccess(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	logging.Info("  [OK] Output directory is writable")

	if cfg.WorkDir != "" {
		if err := ensureDirectory(cfg.WorkDir, "work"); err != nil {
			return nil, fmt.Errorf("work directory error: %w", err)
		}
	}

	cfg.LedgerEnabled()

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Ledger:      %s", enabledString(cfg.LedgerPath != ""))
	logging.Info("    Skip:        %s", enabledString(cfg.SkipUnchanged))
	logging.Info("    Publish:     %s", enabledString(cfg.PublishEnabled()))
	logging.Info("    Textfile:    %s", enabledString(cfg.MetricsTextfile != ""))

	return cfg, nil
}

// LedgerEnabled creates the ledger's parent directory and reports whether it
// is usable. A ledger that cannot be created is disabled with a warning.
func (c *Config) LedgerEnabled() bool {
	if c.LedgerPath == "" {
		return false
	}
	if !setupOptionalDir(filepath.Dir(c.LedgerPath), "ledger") {
		c.LedgerPath = ""
		c.SkipUnchanged = false
		return false
	}
	return true
}

func (c *Config) logValues() {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  INPUT_DIR:           %s", c.InputDir)
	logging.Info("  OUTPUT_DIR:          %s", c.OutputDir)
	logging.Info("  MODE:                %s", c.Mode)
	logging.Info("  WHITE_THRESHOLD:     %d", c.WhiteThreshold)
	logging.Info("  CALIBRATION_FILE:    %s", orDefault(c.CalibrationFile, "(built-in presets)"))
	logging.Info("  VIDEO_STRATEGY:      %s", c.VideoStrategy)
	logging.Info("  WORK_DIR:            %s", orDefault(c.WorkDir, os.TempDir()))
	logging.Info("  FFMPEG_PATH:         %s", c.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", c.FFprobePath)
	logging.Info("  FFMPEG_TIMEOUT:      %s", timeoutString(c.FFmpegTimeout))
	logging.Info("  VIDEO_BITRATE:       %s", c.VideoBitrate)
	logging.Info("  CROP_CRF:            %d", c.CropCRF)
	logging.Info("  CROP_PRESET:         %s", c.CropPreset)
	logging.Info("  LEDGER_PATH:         %s", orDefault(c.LedgerPath, "(disabled)"))
	logging.Info("  SKIP_UNCHANGED:      %v", c.SkipUnchanged)
	logging.Info("  METRICS_TEXTFILE:    %s", orDefault(c.MetricsTextfile, "(disabled)"))
	logging.Info("  USE_VIPS:            %v", c.UseVips)
	logging.Info("  LISTEN_ADDR:         %s", c.ListenAddr)
	logging.Info("  COS_BUCKET_URL:      %s", orDefault(c.COSBucketURL, "(disabled)"))
	logging.Info("  COS_SECRET_ID:       %s", maskSecret(c.COSSecretID))
	logging.Info("  COS_SECRET_KEY:      %s", maskSecret(c.COSSecretKey))
	logging.Info("  COS_PREFIX:          %s", c.COSPrefix)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if c.ImagesOnly {
		logging.Info("  Filter:              images only")
	}
	if c.VideosOnly {
		logging.Info("  Filter:              videos only")
	}
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func timeoutString(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

// maskSecret keeps the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// LogLedgerInit logs ledger initialization
func LogLedgerInit(path string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("LEDGER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Path: %s", path)
	logging.Info("  [OK] Ledger initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg
func LogTranscoderInit(ffmpegPath, ffprobePath string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	for _, bin := range []string{ffmpegPath, ffprobePath} {
		if err := checkFFmpeg(bin); err != nil {
			logging.Warn("  %s check failed: %v", bin, err)
			logging.Warn("  Video processing will fail")
		} else {
			logging.Info("  [OK] %s is available", bin)
		}
	}
}

// LogCodecInit logs which still-image crop backend is active.
func LogCodecInit(vipsAvailable bool) {
	if vipsAvailable {
		logging.Info("  [OK] libvips crop backend enabled")
		return
	}
	logging.Info("  Still crops use the in-process decoder (libvips unavailable or disabled)")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered preview routes at debug level.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	logging.Debug("  Registered routes (%d total):", len(routes))
	logging.Debug("")

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
		logging.Debug("")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// LogServerStarted logs the preview server endpoints.
func LogServerStarted(addr string, startup time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", startup)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Preview:       http://%s/api/calibration", displayAddr(addr))
	logging.Info("    Metrics:       http://%s/metrics", displayAddr(addr))
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// RunSummary holds the counts printed after a batch.
type RunSummary struct {
	RunID     string
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// LogRunComplete logs the batch summary.
func LogRunComplete(s RunSummary) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RUN COMPLETE")
	logging.Info("------------------------------------------------------------")
	if s.RunID != "" {
		logging.Info("  Run:        %s", s.RunID)
	}
	logging.Info("  Succeeded:  %d", s.Succeeded)
	logging.Info("  Failed:     %d", s.Failed)
	logging.Info("  Skipped:    %d", s.Skipped)
	logging.Info("  Duration:   %v", s.Duration.Round(time.Millisecond))
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____                                 __
   / __/________ _____ ___  ___  _______/ /_
  / /_/ ___/ __ '/ __ '__ \/ _ \/ ___/ / / __/
 / __/ /  / /_/ / / / / / /  __/ /__/ /_/ / /_
/_/ /_/   \__,_/_/ /_/ /_/\___/\___/\__,_/\__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg(bin string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}
	logging.Debug("  %s path: %s", bin, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", bin, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", bin, strings.TrimSpace(lines[0]))
	}

	return nil
}
