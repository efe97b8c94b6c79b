package monitoring

import (
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("filter: %d kernel(s)", 2)
	if !strings.HasPrefix(got, "filter:") {
		t.Errorf("custom logger saw %q, want filter prefix", got)
	}

	// nil installs a no-op, not a nil function
	SetLogger(nil)
	if Logf == nil {
		t.Fatal("Logf became nil after SetLogger(nil)")
	}
	got = ""
	Logf("dropped")
	if got != "" {
		t.Errorf("no-op logger still recorded %q", got)
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}
