package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	if err == nil {
		t.Fatal("explicit missing config file should fail")
	}

	m, err = NewManager("", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	if cfg.Conversion.WidthThreshold != 3000 {
		t.Errorf("width_threshold = %d, want 3000", cfg.Conversion.WidthThreshold)
	}
	if cfg.Conversion.Quality != 85 {
		t.Errorf("quality = %d, want 85", cfg.Conversion.Quality)
	}
	if !cfg.Conversion.Grayscale {
		t.Error("grayscale should default on")
	}
	if cfg.Concurrency.Workers != 0 {
		t.Errorf("workers = %d, want 0 (auto)", cfg.Concurrency.Workers)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "me2comic.yaml")
	body := "conversion:\n  width_threshold: 2400\n  quality: 90\nconcurrency:\n  workers: 4\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	cfg := m.Get()
	if cfg.Conversion.WidthThreshold != 2400 {
		t.Errorf("width_threshold = %d, want 2400", cfg.Conversion.WidthThreshold)
	}
	if cfg.Conversion.Quality != 90 {
		t.Errorf("quality = %d, want 90", cfg.Conversion.Quality)
	}
	if cfg.Concurrency.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Concurrency.Workers)
	}
	// Untouched keys keep their defaults.
	if cfg.Conversion.ResizeHeight != 1500 {
		t.Errorf("resize_height = %d, want default 1500", cfg.Conversion.ResizeHeight)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width threshold", func(c *Config) { c.Conversion.WidthThreshold = 0 }},
		{"zero resize height", func(c *Config) { c.Conversion.ResizeHeight = 0 }},
		{"quality too high", func(c *Config) { c.Conversion.Quality = 101 }},
		{"negative unsharp", func(c *Config) { c.Conversion.UnsharpAmount = -1 }},
		{"negative batch size", func(c *Config) { c.Concurrency.BatchSize = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Conversion: ConversionConfig{
					WidthThreshold: 3000,
					ResizeHeight:   1500,
					Quality:        85,
				},
			}
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := &Config{
		Conversion: ConversionConfig{
			WidthThreshold:   3000,
			ResizeHeight:     1500,
			Quality:          85,
			HighResThreshold: -5,
		},
		Concurrency: ConcurrencyConfig{Workers: -2},
	}
	if err := Validate(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Conversion.HighResThreshold != 0 {
		t.Errorf("highres_threshold = %d, want normalized 0", cfg.Conversion.HighResThreshold)
	}
	if cfg.Concurrency.Workers != 0 {
		t.Errorf("workers = %d, want normalized 0", cfg.Concurrency.Workers)
	}
}
