package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.APIMode != "local" {
		t.Errorf("expected default apiMode 'local', got '%s'", cfg.APIMode)
	}
	if cfg.ResponseStyle != "short" {
		t.Errorf("expected default responseStyle 'short', got '%s'", cfg.ResponseStyle)
	}
	if !cfg.Notifications {
		t.Error("expected notifications enabled by default")
	}
	if cfg.LLM.Ollama.Endpoint != "http://127.0.0.1:11434" {
		t.Errorf("unexpected ollama endpoint '%s'", cfg.LLM.Ollama.Endpoint)
	}
	if cfg.LLM.Gemini.Model == "" {
		t.Error("expected a default gemini model")
	}
}

func TestLoadFromPathCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".insightlens", "config.yaml")

	s, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file was not written: %v", err)
	}

	mode, err := s.Get(KeyAPIMode)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if mode != "local" {
		t.Errorf("apiMode = %q, want local", mode)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "responseStyle") {
		t.Error("written config is missing responseStyle key")
	}
}

func TestSetPersistsAndGetReflects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if err := s.Set(KeyAPIMode, "gemini"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mode, _ := s.Get(KeyAPIMode)
	if mode != "gemini" {
		t.Errorf("apiMode after Set = %q, want gemini", mode)
	}

	// A fresh store must see the persisted value.
	s2, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	mode, _ = s2.Get(KeyAPIMode)
	if mode != "gemini" {
		t.Errorf("apiMode after reload = %q, want gemini", mode)
	}
}

func TestWatchFiresOnSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	var got []string
	s.Watch(KeyResponseStyle, func(v string) { got = append(got, v) })

	if err := s.Set(KeyResponseStyle, "detailed"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if len(got) != 1 || got[0] != "detailed" {
		t.Errorf("watcher calls = %v, want [detailed]", got)
	}
}

func TestBoolParsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if !s.Bool(KeyNotifications, false) {
		t.Error("isNotification should default to true from the written file")
	}

	s.Set(KeyNotifications, "false")
	if s.Bool(KeyNotifications, true) {
		t.Error("isNotification should read false after Set")
	}

	if !s.Bool("no.such.key", true) {
		t.Error("unset key should fall back to the provided default")
	}
}
