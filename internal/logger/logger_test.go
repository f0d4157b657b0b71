package logger

import "testing"

func TestSetupLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "bogus"} {
		Setup(level, "json")
		if Log == nil {
			t.Fatalf("Setup(%q) left nil global logger", level)
		}
	}
}

func TestComponentLogger(t *testing.T) {
	Setup("INFO", "json")
	c := Log.Component("hub")
	if c == nil || c == Log {
		t.Fatal("Component should return a distinct child logger")
	}
	// Must not panic on odd or non-string keys.
	c.Info("query", "chars", 12, 42, "odd")
	c.Error("failed", "kind")
}
