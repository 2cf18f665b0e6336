package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/worker"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A-1001", "A-1001"},
		{"ward 3/bed 12", "ward-3_bed-12"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"  ", "assessment"},
		{"a:b*c?d", "a_b_c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	long := sanitizeFilename(string(make([]byte, 300)))
	if len(long) > 100 {
		t.Errorf("expected at most 100 bytes, got %d", len(long))
	}
}

func TestApplyProviderEnv(t *testing.T) {
	t.Run("openai requires key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := model.DefaultConfig()
		cfg.LLM.Provider = "openai"
		if err := applyProviderEnv(cfg); err == nil {
			t.Error("expected error without OPENAI_API_KEY")
		}
	})

	t.Run("openai key shared with embeddings", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg := model.DefaultConfig()
		cfg.LLM.Provider = "openai"
		cfg.Embedding.Provider = "openai"
		if err := applyProviderEnv(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LLM.APIKey != "sk-test" || cfg.Embedding.APIKey != "sk-test" {
			t.Errorf("keys not applied: llm=%q embedding=%q", cfg.LLM.APIKey, cfg.Embedding.APIKey)
		}
	})

	t.Run("anthropic", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
		cfg := model.DefaultConfig()
		cfg.LLM.Provider = "claude"
		if err := applyProviderEnv(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LLM.APIKey != "sk-ant-test" {
			t.Errorf("expected anthropic key, got %q", cfg.LLM.APIKey)
		}
	})

	t.Run("ollama base url", func(t *testing.T) {
		t.Setenv("OLLAMA_BASE_URL", "http://gpu-box:11434/")
		cfg := model.DefaultConfig()
		cfg.LLM.Provider = "ollama"
		cfg.Embedding.Provider = "ollama"
		if err := applyProviderEnv(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LLM.BaseURL != "http://gpu-box:11434/" {
			t.Errorf("unexpected LLM base URL %q", cfg.LLM.BaseURL)
		}
		if cfg.Embedding.BaseURL != "http://gpu-box:11434/v1" {
			t.Errorf("unexpected embedding base URL %q", cfg.Embedding.BaseURL)
		}
	})

	t.Run("disabled providers need nothing", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		if err := applyProviderEnv(model.DefaultConfig()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDecodeConfigOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	setDefaults()

	viper.Set("retrieval.top_k", 5)
	viper.Set("timeouts.embed", "3s")
	viper.Set("store.driver", "postgres")

	cfg, err := decodeConfig()
	if err != nil {
		t.Fatalf("decodeConfig: %v", err)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Timeouts.Embed != 3*time.Second {
		t.Errorf("expected embed timeout 3s, got %v", cfg.Timeouts.Embed)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Store.Driver)
	}
	if cfg.Retrieval.Threshold != 0.6 {
		t.Errorf("expected default threshold 0.6, got %v", cfg.Retrieval.Threshold)
	}
}

func TestSchedulePurgeRejectsBadSchedule(t *testing.T) {
	st, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	if _, err := schedulePurge(context.Background(), st, "every now and then", nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestSchedulePurgeDeletesExpired(t *testing.T) {
	st, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:", Retention: time.Minute})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	id, err := st.InsertTranscript(ctx, store.Transcript{
		AssessmentID: "a1",
		Text:         "pulse 76",
		CreatedAt:    time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	c, err := schedulePurge(ctx, st, "@every 1s", nil)
	if err != nil {
		t.Fatalf("schedulePurge: %v", err)
	}
	defer func() { <-c.Stop().Done() }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := st.GetTranscript(ctx, id); errors.Is(err, store.ErrNotFound) {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Error("expired transcript was not purged")
}

func TestNewLimiterPerServiceRates(t *testing.T) {
	l := newLimiter(model.RateLimitingConfig{
		RequestsPerSecond: 0,
		BurstSize:         1,
		EmbedRPS:          0.001,
	})

	if !l.Allow(worker.KeyEmbed) {
		t.Fatal("first embed call should use the burst")
	}
	if l.Allow(worker.KeyEmbed) {
		t.Error("second embed call should be throttled by embed_rps")
	}
	for i := 0; i < 10; i++ {
		if !l.Allow(worker.KeyCompletion) {
			t.Fatalf("completion call %d throttled; shared rate is unlimited", i)
		}
	}
}
