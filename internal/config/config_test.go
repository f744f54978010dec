package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"Pantheon-Lattice/internal/memory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lattice.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Memory.MaxMessages != 100 || cfg.Memory.MaxObservations != 20 {
		t.Fatalf("unexpected memory caps: %+v", cfg.Memory)
	}
	if cfg.Memory.VocabularyTTL() != 30*24*time.Hour {
		t.Fatalf("unexpected vocabulary ttl: %s", cfg.Memory.VocabularyTTL())
	}
	if cfg.Observe.Workers != 2 || cfg.Observe.QueueName != "lattice:observations" {
		t.Fatalf("unexpected observe defaults: %+v", cfg.Observe)
	}
}

// 记忆容量的配置字段必须能直接装配 memory.Config，latticed 启动时就是这样传递的。
func TestMemoryConfigFeedsParticipantMemory(t *testing.T) {
	path := writeConfig(t, `{"memory": {"max_messages": 7, "max_observations": 3, "vocabulary_ttl_days": 1}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	built := memory.Config{
		MaxMessages:     cfg.Memory.MaxMessages,
		MaxObservations: cfg.Memory.MaxObservations,
		VocabularyTTL:   cfg.Memory.VocabularyTTL(),
	}
	if built.MaxMessages != 7 || built.MaxObservations != 3 {
		t.Fatalf("unexpected caps: %+v", built)
	}
	if built.VocabularyTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %s", built.VocabularyTTL)
	}
}

func TestLoadRejectsMissingPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
