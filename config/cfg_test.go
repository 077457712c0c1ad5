package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"

	"schemac/common"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return name
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Schema.Suffix != ".json" {
		t.Errorf("Suffix = %q, want .json", cfg.Schema.Suffix)
	}
	if cfg.Schema.ExtensionMarker != "extension.json" {
		t.Errorf("ExtensionMarker = %q", cfg.Schema.ExtensionMarker)
	}
	if len(cfg.Schema.Extensions) != 0 {
		t.Errorf("Extensions = %v, want none", cfg.Schema.Extensions)
	}
	if cfg.Output.Format != common.OutputFmtJSON || cfg.Output.Indent != 2 {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", cfg.Watch.Debounce)
	}
	if cfg.Watch.MetricsListen != "" {
		t.Errorf("MetricsListen = %q, want disabled", cfg.Watch.MetricsListen)
	}
	// template field must survive configuration processing unexpanded
	if !strings.Contains(cfg.Export.OutputNameTemplate, "{{ .Version }}") {
		t.Errorf("OutputNameTemplate = %q", cfg.Export.OutputNameTemplate)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" || cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, `version: 1
schema:
  home: /srv/schema
  extensions: ["extensions", "vendors/**"]
  suffix: ".schema.json"
output:
  format: yaml
  indent: 4
export:
  output_name_template: "{{ .Version }}"
  overwrite: true
watch:
  debounce: 2s
  metrics_listen: "localhost:9464"
logging:
  console:
    level: debug
  file:
    level: debug
    destination: `+filepath.Join(dir, "logs", "schemac.log")+`
    mode: append
reporting:
  destination: `+filepath.Join(dir, "report.zip")+`
`)

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Schema.Home != "/srv/schema" {
		t.Errorf("Home = %q", cfg.Schema.Home)
	}
	if len(cfg.Schema.Extensions) != 2 || cfg.Schema.Extensions[1] != "vendors/**" {
		t.Errorf("Extensions = %v", cfg.Schema.Extensions)
	}
	if cfg.Schema.Suffix != ".schema.json" {
		t.Errorf("Suffix = %q", cfg.Schema.Suffix)
	}
	// untouched value keeps default
	if cfg.Schema.ExtensionMarker != "extension.json" {
		t.Errorf("ExtensionMarker = %q", cfg.Schema.ExtensionMarker)
	}
	if cfg.Output.Format != common.OutputFmtYAML || cfg.Output.Indent != 4 {
		t.Errorf("Output = %+v", cfg.Output)
	}
	if cfg.Export.OutputNameTemplate != "{{ .Version }}" || !cfg.Export.Overwrite {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.Watch.Debounce != 2*time.Second || cfg.Watch.MetricsListen != "localhost:9464" {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("FileLogger.Mode = %q", cfg.Logging.FileLogger.Mode)
	}
	// sanitizer makes sure log directory exists
	if _, err := os.Stat(filepath.Join(dir, "logs")); err != nil {
		t.Errorf("log directory was not created: %v", err)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid yaml",
			content: `version: 1
schema:
  suffix: ".json"
  invalid indent
`,
		},
		{
			name: "unknown field",
			content: `version: 1
unknown_field: value
`,
		},
		{
			name:    "invalid version",
			content: "version: 2\n",
		},
		{
			name: "unknown output format",
			content: `version: 1
output:
  format: xml
`,
		},
		{
			name: "suffix without dot",
			content: `version: 1
schema:
  suffix: json
`,
		},
		{
			name: "marker with directory",
			content: `version: 1
schema:
  extension_marker: meta/extension.json
`,
		},
		{
			name: "empty extension path",
			content: `version: 1
schema:
  extensions: [""]
`,
		},
		{
			name: "bad metrics address",
			content: `version: 1
watch:
  metrics_listen: "not an address"
`,
		},
		{
			name: "bad console level",
			content: `version: 1
logging:
  console:
    level: verbose
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadConfiguration() succeeded, want error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}
	if _, err := LoadConfiguration("", option); err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Schema.Extensions = []string{"extensions"}
	cfg.Output.Format = common.OutputFmtYAML
	cfg.Watch.Debounce = 3 * time.Second

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if !strings.Contains(string(data), "format: yaml") {
		t.Errorf("format is not dumped by name:\n%s", data)
	}

	cfg2, err := unmarshalConfig(data, &Config{}, false)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Output.Format != common.OutputFmtYAML || cfg2.Watch.Debounce != 3*time.Second {
		t.Errorf("values lost after dump/load: %+v %+v", cfg2.Output, cfg2.Watch)
	}
	if len(cfg2.Schema.Extensions) != 1 {
		t.Errorf("Extensions = %v", cfg2.Schema.Extensions)
	}
}

func TestUnmarshalConfig(t *testing.T) {
	t.Run("valid config without processing", func(t *testing.T) {
		result, err := unmarshalConfig([]byte(`version: 1`), &Config{}, false)
		if err != nil {
			t.Fatalf("unmarshalConfig() error = %v", err)
		}
		if result.Version != 1 {
			t.Errorf("Version = %d, want 1", result.Version)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := unmarshalConfig([]byte(`invalid: [yaml`), &Config{}, false); err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})
}

func TestLoggingConfig_Prepare(t *testing.T) {
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "normal", Destination: filepath.Join(dir, "test.log"), Mode: "overwrite"},
	}

	log, err := conf.Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("hidden")
	log.Info("visible")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "visible") || strings.Contains(string(data), "hidden") {
		t.Errorf("log content = %q", data)
	}
}

func TestLoggingConfig_PrepareWithReport(t *testing.T) {
	dir := t.TempDir()
	rc := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	rpt, err := rc.Prepare()
	if err != nil {
		t.Fatal(err)
	}
	defer rpt.Close()

	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "none", Destination: filepath.Join(dir, "debug.log")},
	}
	log, err := conf.Prepare(rpt)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("debug entry")
	_ = log.Sync()

	// report forces debug file log
	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil || !strings.Contains(string(data), "debug entry") {
		t.Errorf("debug log = %q, %v", data, err)
	}
	if _, ok := rpt.entries["final.log"]; !ok {
		t.Error("log was not stored in report")
	}
}

func TestCleanFileName(t *testing.T) {
	if got := CleanFileName("schema" + string(os.PathSeparator) + "1.2.0"); strings.ContainsRune(got, os.PathSeparator) || got != "schema1.2.0" {
		t.Errorf("CleanFileName() = %q", got)
	}
	if got := CleanFileName(""); got != "_bad_file_name_" {
		t.Errorf("CleanFileName(\"\") = %q", got)
	}
}
