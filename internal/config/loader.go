package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when fields are zero.
const (
	DefaultListenAddr      = ":8080"
	DefaultWindowSizeWords = 100
	DefaultStepSizeWords   = 30
	DefaultTopK            = 20
	DefaultSnapshotDir     = "./snapshots"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, applying
// defaults for zero fields. It returns a joined error listing all validation
// failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	} else if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Locator parameters: defaults for zero, hard errors for negatives and
	// explicit zeros are indistinguishable in YAML, so anything < 0 is an
	// error and 0 means "use the default".
	switch {
	case cfg.Locator.WindowSizeWords == 0:
		cfg.Locator.WindowSizeWords = DefaultWindowSizeWords
	case cfg.Locator.WindowSizeWords < 1:
		errs = append(errs, fmt.Errorf("locator.window_size_words %d is invalid; must be >= 1", cfg.Locator.WindowSizeWords))
	}
	switch {
	case cfg.Locator.StepSizeWords == 0:
		cfg.Locator.StepSizeWords = DefaultStepSizeWords
	case cfg.Locator.StepSizeWords < 1:
		errs = append(errs, fmt.Errorf("locator.step_size_words %d is invalid; must be >= 1", cfg.Locator.StepSizeWords))
	}
	switch {
	case cfg.Locator.TopK == 0:
		cfg.Locator.TopK = DefaultTopK
	case cfg.Locator.TopK < 1:
		errs = append(errs, fmt.Errorf("locator.top_k %d is invalid; must be >= 1", cfg.Locator.TopK))
	}

	if cfg.Locator.StepSizeWords > cfg.Locator.WindowSizeWords {
		slog.Warn("locator.step_size_words exceeds window_size_words; windows will not overlap and spans crossing window edges may score lower",
			"step", cfg.Locator.StepSizeWords,
			"window", cfg.Locator.WindowSizeWords,
		)
	}

	// Snapshots
	if cfg.Snapshots.Backend == "" {
		cfg.Snapshots.Backend = SnapshotFile
	} else if !cfg.Snapshots.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("snapshots.backend %q is invalid; valid values: file, postgres, none", cfg.Snapshots.Backend))
	}
	if cfg.Snapshots.Backend == SnapshotFile && cfg.Snapshots.Dir == "" {
		cfg.Snapshots.Dir = DefaultSnapshotDir
	}
	if cfg.Snapshots.Backend == SnapshotPostgres && cfg.Snapshots.PostgresDSN == "" {
		errs = append(errs, errors.New("snapshots.postgres_dsn is required when snapshots.backend is postgres"))
	}
	if cfg.Snapshots.Backend == SnapshotNone && len(cfg.Books) == 0 {
		slog.Warn("snapshot persistence is disabled and no books are configured; the server starts empty and loses indexes on restart")
	}

	// Books: duplicate id detection plus required fields.
	idsSeen := make(map[string]int, len(cfg.Books))
	for i, b := range cfg.Books {
		prefix := fmt.Sprintf("books[%d]", i)
		if b.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		}
		if b.ID != "" {
			if prev, ok := idsSeen[b.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of books[%d]", prefix, b.ID, prev))
			}
			idsSeen[b.ID] = i
		}
	}

	return errors.Join(errs...)
}
