package main

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framecut/internal/calibration"
	"framecut/internal/ledger"
	"framecut/internal/startup"

	"github.com/disintegration/imaging"
)

// unsetEnv clears configuration keys a developer shell might carry.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"INPUT_DIR", "OUTPUT_DIR", "MODE", "WHITE_THRESHOLD", "CALIBRATION_FILE",
		"VIDEO_STRATEGY", "WORK_DIR", "LEDGER_PATH", "SKIP_UNCHANGED",
		"METRICS_TEXTFILE", "USE_VIPS", "COS_BUCKET_URL",
	} {
		key := key
		if prev, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"no command", nil, exitUsage, "", "Usage: framecut"},
		{"help", []string{"help"}, exitOK, "Usage: framecut", ""},
		{"unknown command is sanitized", []string{"rm;-rf"}, exitUsage, "", "Unknown command: rm_-rf"},
		{"version", []string{"version"}, exitOK, "framecut " + startup.Version, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("stdout %q lacks %q", out, tt.wantOut)
			}
			if !strings.Contains(errOut, tt.wantErr) {
				t.Errorf("stderr %q lacks %q", errOut, tt.wantErr)
			}
		})
	}
}

func TestSanitizeCommand(t *testing.T) {
	if got := sanitizeCommand("mask\n\x1b[0m"); got != "mask___0m" {
		t.Errorf("sanitizeCommand = %q", got)
	}
}

func TestCalibrationCommand(t *testing.T) {
	unsetEnv(t)
	code, out, errOut := runCLI(t, "calibration")
	if code != exitOK {
		t.Fatalf("exit code = %d: %s", code, errOut)
	}
	set, err := calibration.Parse([]byte(out))
	if err != nil {
		t.Fatalf("output is not a calibration file: %v\n%s", err, out)
	}
	if set.Fingerprint() != calibration.Default().Fingerprint() {
		t.Error("printed calibration differs from the defaults")
	}
	if !strings.HasPrefix(out, "# fingerprint: "+set.Fingerprint()) {
		t.Errorf("missing fingerprint header: %q", out[:min(len(out), 80)])
	}
}

func TestCalibrationCommandBadFile(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("mask:\n  wide:\n    base: {width: 10, height: 10}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI(t, "calibration", "-file", path); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestBatchFlagsOverrideOnlyWhenSet(t *testing.T) {
	f := newBatchFlags("crop", &bytes.Buffer{})
	if err := f.fs.Parse([]string{"-threshold", "240", "-videos-only", "clip.mov"}); err != nil {
		t.Fatal(err)
	}
	cfg := &startup.Config{OutputDir: "env-out", WhiteThreshold: 250, VideoStrategy: "frames"}
	f.apply("crop")(cfg)

	if cfg.Mode != "crop" || cfg.WhiteThreshold != 240 || !cfg.VideosOnly {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.OutputDir != "env-out" || cfg.VideoStrategy != "frames" {
		t.Errorf("unset flags overrode environment: %+v", cfg)
	}
	if cfg.InputDir != "clip.mov" {
		t.Errorf("positional input = %q", cfg.InputDir)
	}
}

func TestMaskCommandProcessesImages(t *testing.T) {
	unsetEnv(t)
	in, out := t.TempDir(), t.TempDir()
	img := imaging.New(120, 100, color.White)
	if err := imaging.Save(img, filepath.Join(in, "a.png")); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(img, filepath.Join(in, "b.jpg")); err != nil {
		t.Fatal(err)
	}
	ledgerPath := filepath.Join(t.TempDir(), "runs", "ledger.db")

	code, _, errOut := runCLI(t, "mask", "-input", in, "-output", out, "-images-only", "-ledger", ledgerPath)
	if code != exitOK {
		t.Fatalf("exit code = %d: %s", code, errOut)
	}
	for _, name := range []string{"a.png", "b.png"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	code, stdout, errOut := runCLI(t, "history", "-ledger", ledgerPath)
	if code != exitOK {
		t.Fatalf("history exit code = %d: %s", code, errOut)
	}
	if !strings.Contains(stdout, "mask") || strings.Count(stdout, "\n") != 2 {
		t.Errorf("history output:\n%s", stdout)
	}
}

func TestMaskCommandFailingFileExitsNonZero(t *testing.T) {
	unsetEnv(t)
	in, out := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "broken.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI(t, "mask", "-output", out, filepath.Join(in, "broken.png")); code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
}

func TestMaskCommandConfigError(t *testing.T) {
	unsetEnv(t)
	in := t.TempDir()
	code, _, _ := runCLI(t, "mask", "-input", in, "-output", t.TempDir(), "-strategy", "teleport")
	if code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestHistoryShowsRunResults(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := ledger.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	id, err := l.StartRun(ctx, "crop", "fp")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordResult(ctx, ledger.Record{
		RunID: id, Input: "/in/clip.mov", Fingerprint: "fp",
		Status: ledger.StatusFailed, Kind: "probe", Error: "probe failure: moov atom not found",
	}); err != nil {
		t.Fatal(err)
	}
	if err := l.FinishRun(ctx, id, ledger.Summary{Failed: 1}); err != nil {
		t.Fatal(err)
	}
	l.Close()

	code, out, errOut := runCLI(t, "history", "-ledger", path, "-run", id)
	if code != exitOK {
		t.Fatalf("exit code = %d: %s", code, errOut)
	}
	if !strings.Contains(out, "clip.mov") || !strings.Contains(out, "moov atom not found") {
		t.Errorf("results output:\n%s", out)
	}
}

func TestHistoryNeedsLedger(t *testing.T) {
	t.Setenv("LEDGER_PATH", "")
	if code, _, _ := runCLI(t, "history"); code != exitUsage {
		t.Errorf("exit code = %d, want %d", code, exitUsage)
	}
	if code, _, _ := runCLI(t, "history", "-ledger", filepath.Join(t.TempDir(), "none.db")); code != exitFailure {
		t.Errorf("missing ledger exit code = %d, want %d", code, exitFailure)
	}
}
