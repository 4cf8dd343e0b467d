package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	_ = Close()
	t.Cleanup(func() { _ = Close() })
}

func TestInit_WritesToFile(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "nested", "dir", "page-cache.log")

	require.NoError(t, Init(path, "info"))
	Infof("fetched %s", "http://example.com/a")
	Debugf("hidden %d", 1)
	Errorf("boom: %v", "no route")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "[INFO] fetched http://example.com/a\n")
	assert.Contains(t, out, "[ERROR] boom: no route\n")
	assert.NotContains(t, out, "hidden")
	assert.Regexp(t, regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6} \[INFO\] `), out)
}

func TestInit_AppendsAndIsIdempotent(t *testing.T) {
	reset(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	require.NoError(t, os.WriteFile(first, []byte("existing\n"), 0o644))

	require.NoError(t, Init(first, ""))
	require.NoError(t, Init(second, "debug"))
	Debugf("not at info")
	Infof("kept")
	require.NoError(t, Close())

	b, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(b), "existing\n")
	assert.Contains(t, string(b), "kept")
	assert.NotContains(t, string(b), "not at info")
	assert.NoFileExists(t, second)
}

func TestInit_InvalidLevel(t *testing.T) {
	reset(t)
	err := Init(filepath.Join(t.TempDir(), "x.log"), "loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestInitWriter_Levels(t *testing.T) {
	reset(t)
	var buf bytes.Buffer
	require.NoError(t, InitWriter(&buf, "WARN"))

	Infof("quiet")
	Warnf("careful %s", "now")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "[WARN] careful now\n")
}

func TestInitFromEnv(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "env.log")
	t.Setenv(envLogPath, path)
	t.Setenv(envLogLevel, "debug")

	require.NoError(t, InitFromEnv())
	Debugf("from env")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[DEBUG] from env")
}

func TestCurrent_InitializesLazily(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "lazy.log")
	t.Setenv(envLogPath, path)
	t.Setenv(envLogLevel, "")

	Infof("first line")
	require.NoError(t, Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[INFO] first line")
}

func TestLogging_ConcurrentWithClose(t *testing.T) {
	reset(t)
	t.Setenv(envLogPath, filepath.Join(t.TempDir(), "race.log"))
	t.Setenv(envLogLevel, "debug")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.NotPanics(t, func() { Warnf("line %d", j) })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = Close()
			}
		}()
	}
	wg.Wait()
}
