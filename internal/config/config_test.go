package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-affect/pkg/audioio"
	"github.com/teslashibe/go-affect/pkg/face"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Face.HistorySize != face.HistorySize {
		t.Errorf("Expected history %d, got %d", face.HistorySize, cfg.Face.HistorySize)
	}
	if cfg.RTP.Backend != audioio.BackendRTP {
		t.Errorf("Expected rtp backend, got %q", cfg.RTP.Backend)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AFFECT_CONFIG", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Voice.BufferSize != 1024 {
		t.Errorf("Expected buffer 1024, got %d", cfg.Voice.BufferSize)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "affect.yaml", `
server:
  addr: ":9090"
face:
  history_size: 30
voice:
  sample_rate: 48000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Face.HistorySize != 30 {
		t.Errorf("Expected history 30, got %d", cfg.Face.HistorySize)
	}
	if cfg.Voice.SampleRate != 48000 {
		t.Errorf("Expected 48000, got %d", cfg.Voice.SampleRate)
	}
	// Untouched keys keep their defaults
	if cfg.Face.YawLimit != 0.5 {
		t.Errorf("Expected default yaw limit, got %v", cfg.Face.YawLimit)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := writeFile(t, "affect.yaml", "log:\n  level: debug\n")
	t.Setenv("AFFECT_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug, got %q", cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "affect.yaml", "server:\n  addr: \":9090\"\n")
	t.Setenv("AFFECT_SERVER_ADDR", ":7070")
	t.Setenv("AFFECT_FACE_HISTORY_SIZE", "5")
	t.Setenv("AFFECT_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Expected :7070, got %q", cfg.Server.Addr)
	}
	if cfg.Face.HistorySize != 5 {
		t.Errorf("Expected history 5, got %d", cfg.Face.HistorySize)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected json, got %q", cfg.Log.Format)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("AFFECT_CONFIG", "")

	tests := []struct {
		name    string
		content string
	}{
		{"bad history", "face:\n  history_size: 0\n"},
		{"bad penalty", "face:\n  yaw_penalty: 2\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad backend", "rtp:\n  backend: alsa\n"},
		{"bad yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "affect.yaml", tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestYAML(t *testing.T) {
	cfg := Default()
	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}

	for _, want := range []string{"history_size: 15", "backend: rtp", "buffer_size: 1024"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}
}

func TestPipeline(t *testing.T) {
	cfg := Default()
	cfg.Face.HistorySize = 8

	p := cfg.Pipeline()
	if p.Face.HistorySize != 8 {
		t.Errorf("Expected history 8, got %d", p.Face.HistorySize)
	}
	if p.ReadLimit <= 0 {
		t.Errorf("Expected a read limit, got %d", p.ReadLimit)
	}
}
