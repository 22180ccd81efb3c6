package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"planline/internal/config"
)

func TestDefaultRoundTrip(t *testing.T) {
	cfg := config.Default("http://127.0.0.1:8787")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.PageSize() != 10 {
		t.Fatalf("page size: %d", cfg.PageSize())
	}
	if cfg.API.KeyEnv != "PLANLINE_API_KEY" {
		t.Fatalf("key env: %q", cfg.API.KeyEnv)
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	for _, bad := range []string{"", "ftp://host", "not a url", "http://"} {
		_, err := config.FromYAML([]byte("api:\n  base_url: \"" + bad + "\"\n"))
		if err == nil {
			t.Errorf("base_url %q accepted", bad)
		}
	}
}

func TestPageSizeValidation(t *testing.T) {
	cfg, err := config.FromYAML([]byte("api:\n  base_url: http://127.0.0.1:8787\nui:\n  page_size: 0\n"))
	if err != nil {
		t.Fatalf("page_size 0 rejected: %v", err)
	}
	if cfg.PageSize() != 10 {
		t.Fatalf("page size: %d, want default 10", cfg.PageSize())
	}
	if _, err := config.FromYAML([]byte("api:\n  base_url: http://127.0.0.1:8787\nui:\n  page_size: -3\n")); err == nil {
		t.Fatal("negative page_size accepted")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := config.LoadOptional(t.TempDir())
	if err != nil || cfg != nil {
		t.Fatalf("got %v, %v", cfg, err)
	}
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	yml := "api:\n  base_url: https://tickets.example.com\n  key_env: TEST_TICKET_KEY\nui:\n  page_size: 25\n"
	if err := os.WriteFile(filepath.Join(dir, "planline.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "https://tickets.example.com" || cfg.PageSize() != 25 {
		t.Fatalf("cfg: %+v", cfg)
	}

	t.Setenv("TEST_TICKET_KEY", "sekrit")
	if cfg.APIKey() != "sekrit" {
		t.Fatalf("api key: %q", cfg.APIKey())
	}
}

func TestLoadMissingIsError(t *testing.T) {
	if _, err := config.Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
