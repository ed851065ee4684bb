// Package config loads and watches the application configuration. It
// layers defaults, an optional YAML file and ME2COMIC_* environment
// variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the full application configuration tree.
type Config struct {
	Conversion  ConversionConfig  `mapstructure:"conversion"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Tools       ToolsConfig       `mapstructure:"tools"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	History     HistoryConfig     `mapstructure:"history"`
}

// ConversionConfig holds the image transform parameters handed to the
// conversion engine.
type ConversionConfig struct {
	// WidthThreshold in pixels separates double-page spreads, which get
	// split, from single pages.
	WidthThreshold int `mapstructure:"width_threshold"`

	// ResizeHeight in pixels; width follows the aspect ratio.
	ResizeHeight int `mapstructure:"resize_height"`

	// Quality is the JPEG output quality (1-100).
	Quality int `mapstructure:"quality"`

	Grayscale bool `mapstructure:"grayscale"`

	// Unsharp mask parameters, applied unless the source directory is
	// flagged high resolution. Amount 0 disables the pass entirely.
	UnsharpRadius    float64 `mapstructure:"unsharp_radius"`
	UnsharpSigma     float64 `mapstructure:"unsharp_sigma"`
	UnsharpAmount    float64 `mapstructure:"unsharp_amount"`
	UnsharpThreshold float64 `mapstructure:"unsharp_threshold"`

	// HighResThreshold in pixels; directories whose sampled widths meet
	// it skip sharpening. Zero disables the check.
	HighResThreshold int `mapstructure:"highres_threshold"`
}

type ConcurrencyConfig struct {
	// Workers caps concurrent engine subprocesses; 0 selects
	// automatically from the image count and physical cores.
	Workers int `mapstructure:"workers"`

	// BatchSize forces a fixed images-per-batch; 0 sizes adaptively.
	BatchSize int `mapstructure:"batch_size"`
}

type ToolsConfig struct {
	// GraphicsMagickPath overrides PATH lookup for the gm binary.
	GraphicsMagickPath string `mapstructure:"graphicsmagick_path"`
}

type LoggingConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	LogDir  string `mapstructure:"log_dir"`
}

type HistoryConfig struct {
	// Enabled persists a summary of each run to the journal database.
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ValidationError reports a rejected configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config [%s]: %s (got: %v)", e.Field, e.Message, e.Value)
}

// Watcher is notified after a successful hot reload.
type Watcher interface {
	OnConfigChange(oldConfig, newConfig *Config) error
}

// Manager owns the viper instance and serves the current Config.
type Manager struct {
	viper      *viper.Viper
	logger     *zap.Logger
	configFile string

	mutex    sync.RWMutex
	config   *Config
	watchers []Watcher
}

// NewManager loads the configuration once and returns a manager for
// subsequent access and reloads.
func NewManager(configFile string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		viper:      viper.New(),
		logger:     logger,
		configFile: configFile,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	setDefaults(m.viper)

	if m.configFile != "" {
		m.viper.SetConfigFile(m.configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		m.viper.AddConfigPath(home)
		m.viper.AddConfigPath(".")
		m.viper.SetConfigName(".me2comic")
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix("ME2COMIC")
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// No file found, defaults and environment apply.
	}

	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := Validate(&cfg); err != nil {
		return err
	}

	m.mutex.Lock()
	m.config = &cfg
	m.mutex.Unlock()
	return nil
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.config
}

// AddWatcher registers a hot reload listener.
func (m *Manager) AddWatcher(w Watcher) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.watchers = append(m.watchers, w)
}

// EnableHotReload re-reads the configuration whenever the file on disk
// changes. A reload that fails validation keeps the previous config.
func (m *Manager) EnableHotReload() {
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.mutex.RLock()
		old := m.config
		m.mutex.RUnlock()

		if err := m.load(); err != nil {
			m.logger.Error("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}

		m.mutex.RLock()
		current := m.config
		watchers := m.watchers
		m.mutex.RUnlock()

		m.logger.Info("config reloaded", zap.String("file", e.Name))
		for _, w := range watchers {
			if err := w.OnConfigChange(old, current); err != nil {
				m.logger.Error("config change notification failed", zap.Error(err))
			}
		}
	})
	m.viper.WatchConfig()
}

// Validate checks ranges and normalizes recoverable values in place.
func Validate(cfg *Config) error {
	conv := &cfg.Conversion
	if conv.WidthThreshold <= 0 {
		return &ValidationError{
			Field:   "conversion.width_threshold",
			Value:   conv.WidthThreshold,
			Message: "width threshold must be positive",
		}
	}
	if conv.ResizeHeight <= 0 {
		return &ValidationError{
			Field:   "conversion.resize_height",
			Value:   conv.ResizeHeight,
			Message: "resize height must be positive",
		}
	}
	if conv.Quality < 1 || conv.Quality > 100 {
		return &ValidationError{
			Field:   "conversion.quality",
			Value:   conv.Quality,
			Message: "quality must be between 1 and 100",
		}
	}
	if conv.UnsharpAmount < 0 {
		return &ValidationError{
			Field:   "conversion.unsharp_amount",
			Value:   conv.UnsharpAmount,
			Message: "unsharp amount cannot be negative",
		}
	}
	if conv.HighResThreshold < 0 {
		conv.HighResThreshold = 0
	}

	cc := &cfg.Concurrency
	if cc.Workers < 0 {
		cc.Workers = 0
	}
	if cc.BatchSize < 0 {
		return &ValidationError{
			Field:   "concurrency.batch_size",
			Value:   cc.BatchSize,
			Message: "batch size cannot be negative",
		}
	}
	return nil
}
