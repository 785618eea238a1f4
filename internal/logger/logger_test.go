package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/samvad-hq/soupchef/internal/config"
)

func TestLevelForTiers(t *testing.T) {
	cases := map[string]zapcore.Level{
		config.VerbosityQuiet:   zapcore.ErrorLevel,
		config.VerbosityDefault: zapcore.WarnLevel,
		config.VerbosityVerbose: zapcore.InfoLevel,
		config.VerbosityDebug:   zapcore.DebugLevel,
	}
	for tier, want := range cases {
		if got := LevelFor(tier); got != want {
			t.Fatalf("LevelFor(%q) = %v, want %v", tier, got, want)
		}
	}
}

func TestInitSetsPackageLogger(t *testing.T) {
	log, err := Init(&config.Config{AppName: "test", Verbose: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if log == nil || S == nil {
		t.Fatalf("expected logger and package-level S to be set")
	}
	log.InfoObj("hello", "k", map[string]any{"a": 1})
	InfoObj("package helper", "k", 1)
}

func TestEnsureFallsBackToNop(t *testing.T) {
	if _, ok := Ensure(nil).(NopLogger); !ok {
		t.Fatalf("Ensure(nil) should return NopLogger")
	}
}
