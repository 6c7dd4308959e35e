package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"michatta/internal/config"
	"michatta/internal/daemon"
	"michatta/internal/legacy"
	"michatta/internal/logging"
	"michatta/internal/testsupport"
	"michatta/internal/viewed"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("MICHATTA_API_TOKEN", "")
	t.Setenv("NO_COLOR", "1")

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// startTestDaemon runs a daemon on the env's data directory and points the
// env's config file at its API listener.
func startTestDaemon(t *testing.T, env *cliTestEnv) *daemon.Daemon {
	t.Helper()
	mirror := legacy.Open(env.cfg.Paths.LegacyPath, logging.NewNop())
	d, err := daemon.New(env.cfg, viewed.FromConfig(env.cfg, mirror, logging.NewNop()), mirror, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	env.cfg.Paths.APIBind = d.Addr()
	writeTestConfig(t, env.configPath, env.cfg)
	return d
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\ndatabase_path = %q\nlegacy_path = %q\napi_bind = %q\n\n[logging]\nlevel = \"warn\"\n",
		cfg.Paths.DataDir,
		cfg.Paths.DatabasePath,
		cfg.Paths.LegacyPath,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
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

func mustRunCLI(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, configPath, args...)
	if err != nil {
		t.Fatalf("michatta %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
