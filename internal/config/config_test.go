package config_test

import (
	"testing"

	"github.com/lecternhq/lectern/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "verbose", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestSnapshotBackend_IsValid(t *testing.T) {
	t.Parallel()

	for _, b := range []config.SnapshotBackend{config.SnapshotFile, config.SnapshotPostgres, config.SnapshotNone} {
		if !b.IsValid() {
			t.Errorf("%q should be valid", b)
		}
	}
	for _, b := range []config.SnapshotBackend{"", "s3", "File"} {
		if b.IsValid() {
			t.Errorf("%q should be invalid", b)
		}
	}
}
