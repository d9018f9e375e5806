package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meetingmedia/internal/config"
	"meetingmedia/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config pointing both remote APIs at baseURL and
// enabling a local congregation store.
func setupCLITestEnv(t *testing.T, baseURL string) *cliTestEnv {
	t.Helper()

	opts := []testsupport.ConfigOption{testsupport.WithCongregationDir()}
	if baseURL != "" {
		opts = append(opts, testsupport.WithRemote(baseURL))
	}
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "meetingmedia", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
app_dir = %q
output_dir = %q
log_dir = %q

[media]
language = "E"
sign_language = false
subtitles = false

[remote]
pub_media_url = %q
mediator_url = %q
timeout_seconds = 5

[congregation]
enabled = true
local_dir = %q

[logging]
level = "error"
`,
		cfg.Paths.AppDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.Remote.PubMediaURL,
		cfg.Remote.MediatorURL,
		cfg.Congregation.LocalDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}
