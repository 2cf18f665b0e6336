package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/util"
)

// DefaultMaxTranscriptBytes bounds transcripts read from any source
const DefaultMaxTranscriptBytes = 1_000_000

const maxFetchAttempts = 3

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// Loader reads transcripts from files, stdin or http(s) URLs
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
	stdin      io.Reader
}

// NewLoader creates a loader. Remote fetches use the configured proxy.
func NewLoader(timeout time.Duration, cfg model.HTTPConfig) *Loader {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTranscriptBytes
	}
	client := util.NewHTTPClient(timeout, cfg)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}
	return &Loader{httpClient: client, maxBytes: maxBytes, stdin: os.Stdin}
}

// Load reads src: "-" for stdin, an http(s) URL, or a file path
func (l *Loader) Load(ctx context.Context, src string) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case src == "-":
		text, err = l.read(l.stdin)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		text, err = l.fetchWithRetry(ctx, src)
	default:
		text, err = l.readFile(src)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s: transcript is empty", src)
	}
	return text, nil
}

func (l *Loader) readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open transcript: %w", err)
	}
	defer func() { _ = f.Close() }()
	return l.read(f)
}

// read fails instead of silently truncating an oversized transcript
func (l *Loader) read(r io.Reader) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > l.maxBytes {
		return "", fmt.Errorf("transcript exceeds %d bytes", l.maxBytes)
	}
	return string(body), nil
}

func (l *Loader) fetchWithRetry(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		text, err := l.fetch(ctx, rawURL)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == maxFetchAttempts {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		fetchSleepFunc(time.Duration(attempt) * time.Second)
	}
	return "", lastErr
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, */*;q=0.8")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
	return l.read(resp.Body)
}

// isRetryableFetchError reports whether err is a 5xx, 429 or connection failure
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "unexpected status: ") {
		code := strings.TrimPrefix(msg, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}
	return strings.HasPrefix(msg, "fetch: ")
}
