// Copyright 2025 OpenMerit Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func resetGlobalConfig() {
	globalConfig = &Config{
		DataDir:         ".meritd",
		BindAddr:        "0.0.0.0",
		BootstrapAdmin:  "",
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsPort:     12798,
	}
}

func TestLoadCompareFullStruct(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
dataDir: "/var/lib/meritd"
bindAddr: "127.0.0.1"
bootstrapAdmin: "treasury"
shutdownTimeout: "10s"
metricsPort: 8088
tracing: true
tracingStdout: true
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-meritd.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	expected := &Config{
		DataDir:         "/var/lib/meritd",
		BindAddr:        "127.0.0.1",
		BootstrapAdmin:  "treasury",
		ShutdownTimeout: "10s",
		MetricsPort:     8088,
		Tracing:         true,
		TracingStdout:   true,
	}
	if !reflect.DeepEqual(cfg, expected) {
		t.Fatalf("config mismatch\n  got:  %+v\n  want: %+v", cfg, expected)
	}
}

func TestLoadPartialOverlay(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
bootstrapAdmin: "treasury"
`

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-meritd.yaml")

	err := os.WriteFile(tmpFile, []byte(yamlContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if cfg.BootstrapAdmin != "treasury" {
		t.Fatalf(
			"expected bootstrap admin %q, got %q",
			"treasury",
			cfg.BootstrapAdmin,
		)
	}
	// Untouched fields keep their defaults
	if cfg.DataDir != ".meritd" {
		t.Fatalf("expected default data dir, got %q", cfg.DataDir)
	}
	if cfg.MetricsPort != 12798 {
		t.Fatalf("expected default metrics port, got %d", cfg.MetricsPort)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
bootstrapAdmin: "treasury"
metricsPort: 8088
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test-meritd.yaml")
	err := os.WriteFile(tmpFile, []byte(yamlContent), 0o644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("MERITD_METRICS_PORT", "9000")

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	// Environment wins over the file
	if cfg.MetricsPort != 9000 {
		t.Fatalf("expected metrics port 9000, got %d", cfg.MetricsPort)
	}
	if cfg.BootstrapAdmin != "treasury" {
		t.Fatalf(
			"expected bootstrap admin %q, got %q",
			"treasury",
			cfg.BootstrapAdmin,
		)
	}
}

func TestContextRoundTrip(t *testing.T) {
	resetGlobalConfig()
	cfg := GetConfig()
	ctx := WithContext(t.Context(), cfg)
	if got := FromContext(ctx); got != cfg {
		t.Fatalf("expected config from context to match")
	}
	if got := FromContext(t.Context()); got != nil {
		t.Fatalf("expected nil config from empty context, got %+v", got)
	}
}
