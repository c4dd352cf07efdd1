package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"recettes/internal/config"
)

func TestSetupLoggerLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug")
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	if slog.Default() != logger.Logger {
		t.Error("logger should become the default")
	}

	logger = SetupLogger("error")
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be filtered at error level")
	}
}

func TestInitBackend(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	logger := SetupLogger("error")

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"memory", config.Config{DataBackend: "memory"}, false},
		{"sqlite", config.Config{DataBackend: "sqlite", SQLiteDBPath: filepath.Join(t.TempDir(), "db", "recettes.db")}, false},
		{"unknown backend", config.Config{DataBackend: "sheets"}, true},
		{"sqlite without path", config.Config{DataBackend: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			result, err := InitBackend(context.Background(), logger, &cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Repository == nil {
				t.Fatal("nil repository")
			}
			if result.Events != nil {
				t.Error("no broker configured, events should be nil")
			}
			if result.Cleanup != nil {
				if err := result.Cleanup(); err != nil {
					t.Errorf("cleanup: %v", err)
				}
			}
		})
	}
}
