package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommandFiltersByMatch(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "INFO sync complete run_id=one\nINFO sync complete run_id=two\nWARN item failed run_id=one\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "meetingmedia.log"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", "--match", "run_id=one"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "run_id=two") {
		t.Fatalf("expected other runs to be filtered:\n%s", out)
	}
	requireContains(t, out, "item failed run_id=one")

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.TrimSpace(out) != "WARN item failed run_id=one" {
		t.Fatalf("unexpected tail %q", out)
	}
}
