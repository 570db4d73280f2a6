package memory

import (
	"testing"
)

func stubLimit(t *testing.T, current int64) *[]int64 {
	t.Helper()
	var calls []int64
	prev := setMemoryLimit
	setMemoryLimit = func(limit int64) int64 {
		calls = append(calls, limit)
		return current
	}
	t.Cleanup(func() { setMemoryLimit = prev })
	return &calls
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		wantSource string
		wantLimit  int64
		wantErr    bool
	}{
		{"nothing set", Settings{Ratio: DefaultRatio}, "none", 0, false},
		{"container limit", Settings{Limit: 1 << 30, Ratio: 0.5}, "MEMORY_LIMIT", 1 << 29, false},
		{"default ratio", Settings{Limit: 4000, Ratio: DefaultRatio}, "MEMORY_LIMIT", 3000, false},
		{"explicit GOMEMLIMIT wins", Settings{GoMemLimit: "512MiB", Limit: 1 << 30, Ratio: 0.5}, "GOMEMLIMIT", 512 << 20, false},
		{"ratio out of range", Settings{Limit: 1 << 30, Ratio: 1.5}, "none", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubLimit(t, 512<<20)
			res, err := Configure(tt.settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if res.Source != tt.wantSource || res.GoMemLimit != tt.wantLimit {
				t.Errorf("result = %+v", res)
			}
			applied := len(*calls) > 0 && (*calls)[0] >= 0
			if applied != (tt.wantSource == "MEMORY_LIMIT") {
				t.Errorf("SetMemoryLimit calls = %v", *calls)
			}
		})
	}
}

func TestConfigureFromEnv(t *testing.T) {
	calls := stubLimit(t, 0)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "2048")
	t.Setenv("MEMORY_RATIO", "0.5")

	res, err := ConfigureFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if res.GoMemLimit != 1024 || len(*calls) != 1 || (*calls)[0] != 1024 {
		t.Errorf("result = %+v, calls = %v", res, *calls)
	}
}

func TestConfigureFromEnvBadLimit(t *testing.T) {
	stubLimit(t, 0)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "lots")
	if _, err := ConfigureFromEnv(); err == nil {
		t.Error("expected parse error")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{33177600, "31.6 MiB"},
		{2 << 30, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrameBytes(t *testing.T) {
	if got := FrameBytes(3840, 2160); got != 33177600 {
		t.Errorf("FrameBytes(4K) = %d", got)
	}
}
