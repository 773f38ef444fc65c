package logging

import (
	"bytes"
	"testing"

	"github.com/satops/blindscan/internal/config"
)

func TestFromSettingsHonoursLevelAndFormat(t *testing.T) {
	settings := config.Defaults()
	settings.LogLevel = "warn"
	settings.LogFormat = "json"

	var buf bytes.Buffer
	logger, err := FromSettings(settings, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("suppressed by level")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed below warn, got %q", buf.String())
	}

	logger.Warn("visible", Field{Key: "n", Value: 1})
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"WARN"`)) {
		t.Fatalf("expected JSON-formatted output, got %q", buf.String())
	}
}

func TestFromSettingsRejectsUnknownLevel(t *testing.T) {
	settings := config.Defaults()
	settings.LogLevel = "verbose"

	if _, err := FromSettings(settings, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unrecognised log level")
	}
}

func TestFromSettingsRejectsUnknownFormat(t *testing.T) {
	settings := config.Defaults()
	settings.LogFormat = "xml"

	if _, err := FromSettings(settings, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unrecognised log format")
	}
}

func TestWithComponentTagsSubsequentEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Info, JSON, &buf)
	tagged := WithComponent(logger, "session")

	tagged.Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"component":"session"`)) {
		t.Fatalf("expected component field in output, got %q", buf.String())
	}
}
