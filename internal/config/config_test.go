package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func parseYAML(t *testing.T, raw string) Config {
	t.Helper()
	var cfg Config
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestMergePoliteFalseWithoutPace(t *testing.T) {
	t.Parallel()

	file := parseYAML(t, "source:\n  polite: false\n")
	merged := mergeConfig(defaultConfig(), file)

	if merged.Source.IsPolite() {
		t.Fatal("explicit polite: false should disable pacing")
	}
	if merged.Source.Pace != time.Second {
		t.Fatalf("pace should keep its default, got %v", merged.Source.Pace)
	}
}

func TestMergePoliteAbsentKeepsDefault(t *testing.T) {
	t.Parallel()

	file := parseYAML(t, "source:\n  pace: 2s\n")
	merged := mergeConfig(defaultConfig(), file)

	if !merged.Source.IsPolite() {
		t.Fatal("absent polite key should stay polite")
	}
	if merged.Source.Pace != 2*time.Second {
		t.Fatalf("pace override lost, got %v", merged.Source.Pace)
	}
}

func TestMergeOverridesAndDefaults(t *testing.T) {
	t.Parallel()

	file := parseYAML(t, `
database:
  connectAttempts: 9
crawl:
  collections: [genomics, neuroscience]
`)
	merged := mergeConfig(defaultConfig(), file)

	if merged.Database.ConnectAttempts != 9 {
		t.Fatalf("connect attempts override lost, got %d", merged.Database.ConnectAttempts)
	}
	if merged.Database.DSN == "" {
		t.Fatal("unset fields should keep defaults")
	}
	if len(merged.Crawl.Collections) != 2 {
		t.Fatalf("collections override lost: %v", merged.Crawl.Collections)
	}
	if merged.Crawl.StopThreshold != 3 {
		t.Fatalf("stop threshold default lost, got %d", merged.Crawl.StopThreshold)
	}
}
