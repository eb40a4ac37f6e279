package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v2"

	"github.com/telekom/catfact-mailer/pkg/dispatch"
	"github.com/telekom/catfact-mailer/pkg/store"
	"github.com/telekom/catfact-mailer/pkg/version"
)

func executeCommand(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(Config{OutputWriter: &out, Logger: zaptest.NewLogger(t)})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func seedStore(t *testing.T, path string, facts, emails []string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Path: path}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer func() { require.NoError(t, st.Close()) }()
	for _, f := range facts {
		_, err := st.CreateFact(ctx, f)
		require.NoError(t, err)
	}
	for _, e := range emails {
		_, err := st.CreateSubscriber(ctx, e)
		require.NoError(t, err)
	}
}

func TestVersionCommand(t *testing.T) {
	origVersion := version.Version
	origGitCommit := version.GitCommit
	origBuildDate := version.BuildDate
	defer func() {
		version.Version = origVersion
		version.GitCommit = origGitCommit
		version.BuildDate = origBuildDate
	}()

	version.Version = "v1.2.3"
	version.GitCommit = "abc123"
	version.BuildDate = "2026-01-17T15:00:00Z"

	t.Run("default output", func(t *testing.T) {
		out, err := executeCommand(t, context.Background(), "version")
		require.NoError(t, err)
		assert.Contains(t, out, "catfacts v1.2.3 (commit: abc123, built: 2026-01-17T15:00:00Z")
	})

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(t, context.Background(), "version", "-o", "json")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, "v1.2.3", info.Version)
		assert.Equal(t, "abc123", info.GitCommit)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := executeCommand(t, context.Background(), "version", "--output", "yaml")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, yaml.Unmarshal([]byte(out), &info))
		assert.Equal(t, "v1.2.3", info.Version)
		assert.Contains(t, out, "gitCommit: abc123")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := executeCommand(t, context.Background(), "version", "-o", "table")
		assert.Error(t, err)
	})
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catfacts.db")

	out, err := executeCommand(t, context.Background(), "migrate", "--store-path", path)
	require.NoError(t, err)
	assert.Equal(t, path+": schema version 3\n", out)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestMigrateCommandExplicitConfigMustExist(t *testing.T) {
	_, err := executeCommand(t, context.Background(), "migrate",
		"--config-path", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading config")
}

func TestLoadConfigFromFileAndSecrets(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: from-file.db\nschedule:\n  timezone: UTC\n"), 0o600))
	envPath := filepath.Join(dir, "secrets.env")
	dbPath := filepath.Join(dir, "from-env.db")
	require.NoError(t, os.WriteFile(envPath, []byte("CATFACTS_STORE_PATH="+dbPath+"\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CATFACTS_STORE_PATH") })

	out, err := executeCommand(t, context.Background(), "migrate", "--config-path", cfgPath, "--env-file", envPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, dbPath), "the secrets override the file, got %q", out)
}

func TestNextCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("schedule:\n  timezone: UTC\n"), 0o600))

	out, err := executeCommand(t, context.Background(), "next", "--config-path", cfgPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "next dispatch: "), out)

	stamp := strings.Fields(strings.TrimPrefix(out, "next dispatch: "))[0]
	next, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestNextCommandInvalidTimezone(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("schedule:\n  timezone: Mars/Olympus\n"), 0o600))

	_, err := executeCommand(t, context.Background(), "next", "--config-path", cfgPath)
	assert.Error(t, err)
}

func TestDispatchCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catfacts.db")
	seedStore(t, path, []string{"Cats can rotate their ears 180 degrees."}, []string{"a@example.com", "b@example.com"})

	out, err := executeCommand(t, context.Background(), "dispatch", "--store-path", path, "--disable-email")
	require.NoError(t, err)

	var report dispatch.CycleReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)
}

func TestDispatchCommandWithoutFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catfacts.db")
	seedStore(t, path, nil, []string{"a@example.com"})

	_, err := executeCommand(t, context.Background(), "dispatch", "--store-path", path, "--disable-email")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNoFacts)
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServeCommandStopsOnCancel(t *testing.T) {
	addr := freeAddress(t)
	path := filepath.Join(t.TempDir(), "catfacts.db")
	seedStore(t, path, []string{"A cat's nose print is unique."}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := executeCommand(t, ctx, "serve", "--listen-address", addr, "--store-path", path, "--disable-email")
		done <- err
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/catfact")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 25*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeCommandFailsOnTakenPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	path := filepath.Join(t.TempDir(), "catfacts.db")
	_, err = executeCommand(t, context.Background(), "serve",
		"--listen-address", l.Addr().String(), "--store-path", path, "--disable-email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http stopped")
}
