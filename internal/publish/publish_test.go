package publish

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type bucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	requests int
	failures int
}

func newBucket(failures int) (*bucket, *httptest.Server) {
	b := &bucket{objects: map[string][]byte{}, types: map[string]string{}, failures: failures}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.requests++
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if b.failures > 0 {
			b.failures--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		data, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = data
		b.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	return b, srv
}

func writeOutput(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewValidatesBucketURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"empty", "", ErrNoBucket},
		{"no scheme", "bucket.cos.example.com", nil},
		{"bad escape", "http://%zz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BucketURL: tt.url})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := New(Config{BucketURL: "https://art-1250000000.cos.ap-guangzhou.myqcloud.com"}); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "/out/art.webm", "art.webm"},
		{"gallery", "/out/art.webm", "gallery/art.webm"},
		{"/gallery/2024/", "/out/art.png", "gallery/2024/art.png"},
	}
	for _, tt := range tests {
		p, err := New(Config{BucketURL: "https://bucket.example.com", Prefix: tt.prefix})
		if err != nil {
			t.Fatal(err)
		}
		if got := p.Key(tt.path); got != tt.want {
			t.Errorf("Key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestPublishUploadsObject(t *testing.T) {
	b, srv := newBucket(0)
	defer srv.Close()

	p, err := New(Config{BucketURL: srv.URL, SecretID: "id", SecretKey: "key", Prefix: "site"})
	if err != nil {
		t.Fatal(err)
	}
	local := writeOutput(t, "art.webm", "webm-bytes")

	if err := p.Publish(context.Background(), local); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if got := string(b.objects["/site/art.webm"]); got != "webm-bytes" {
		t.Errorf("uploaded body = %q, objects = %v", got, b.objects)
	}
	if ct := b.types["/site/art.webm"]; ct != "video/webm" {
		t.Errorf("Content-Type = %q, want video/webm", ct)
	}
}

func TestPublishRetriesWithFreshReader(t *testing.T) {
	b, srv := newBucket(1)
	defer srv.Close()

	p, err := New(Config{BucketURL: srv.URL, Attempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	local := writeOutput(t, "art.png", "png-bytes")

	if err := p.Publish(context.Background(), local); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.requests < 2 {
		t.Errorf("requests = %d, want a retry", b.requests)
	}
	if got := string(b.objects["/art.png"]); got != "png-bytes" {
		t.Errorf("body after retry = %q, want full content", got)
	}
}

func TestPublishGivesUp(t *testing.T) {
	_, srv := newBucket(100)
	defer srv.Close()

	p, err := New(Config{BucketURL: srv.URL, Attempts: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(context.Background(), writeOutput(t, "art.jpg", "x")); err == nil {
		t.Error("expected error when every attempt fails")
	}
}

func TestPublishMissingFile(t *testing.T) {
	_, srv := newBucket(0)
	defer srv.Close()

	p, err := New(Config{BucketURL: srv.URL, Attempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "gone.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPublishCanceled(t *testing.T) {
	b, srv := newBucket(0)
	defer srv.Close()

	p, err := New(Config{BucketURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.Publish(ctx, writeOutput(t, "art.png", "x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Publish on canceled context = %v, want context.Canceled", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.requests != 0 {
		t.Errorf("requests = %d, want none", b.requests)
	}
}
