package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/page-cache/internal/cache"
	"github.com/leonardcser/page-cache/internal/config"
	"github.com/leonardcser/page-cache/internal/logger"
	"github.com/leonardcser/page-cache/internal/logstats"
	"github.com/leonardcser/page-cache/internal/pagecache"
)

func TestMain(m *testing.M) {
	_ = logger.InitWriter(io.Discard, "error")
	os.Exit(m.Run())
}

const page = "http://example.com/a"

type logsStub struct {
	counts map[logstats.Filter]int64
	ips    []logstats.IPCount
}

func (s logsStub) Count(_ context.Context, f logstats.Filter) (int64, error) {
	return s.counts[f], nil
}

func (s logsStub) TopIPs(_ context.Context, n int) ([]logstats.IPCount, error) {
	if n < len(s.ips) {
		return s.ips[:n], nil
	}
	return s.ips, nil
}

type harness struct {
	deps    Deps
	clock   *clockwork.FakeClock
	fetches int
	// set by OpenStore
	direct bool
	ttl    time.Duration
	cfg    config.Config
	// set by OpenLogs
	mongoURI string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvTTL, "")
	t.Setenv(config.EnvMongoURI, "")
	t.Setenv(config.EnvLog, filepath.Join(dir, "page-cache.log"))

	h := &harness{clock: clockwork.NewFakeClock()}
	store, err := cache.Open(filepath.Join(dir, "cache.bbolt"), cache.Options{Clock: h.clock})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h.deps = Deps{
		OpenStore: func(cfg config.Config, direct bool) (pagecache.Store, func() error, error) {
			h.direct = direct
			h.ttl = cfg.Cache.TTL
			h.cfg = cfg
			return store, func() error { return nil }, nil
		},
		NewFetcher: func(cfg config.Config) pagecache.Fetcher {
			return pagecache.FetcherFunc(func(ctx context.Context, id string) ([]byte, error) {
				h.fetches++
				if id != page {
					return nil, errors.New("no such host")
				}
				return []byte("<html><head><title>A</title></head><body><p>PAGE_A</p></body></html>"), nil
			})
		},
		OpenLogs: func(ctx context.Context, cfg config.Config) (logstats.Source, func(context.Context) error, error) {
			h.mongoURI = cfg.Mongo.URI
			src := logstats.Source(logsStub{
				counts: map[logstats.Filter]int64{
					{}:                               3,
					{Method: "GET"}:                  2,
					{Method: "POST"}:                 1,
					{Method: "GET", Path: "/status"}: 1,
				},
				ips: []logstats.IPCount{{IP: "10.0.0.1", Count: 2}, {IP: "10.0.0.2", Count: 1}},
			})
			return src, func(context.Context) error { return nil }, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCmd(h.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestGet_CachesAndCounts(t *testing.T) {
	h := newHarness(t)

	out, errOut, err := h.run("get", page)
	require.NoError(t, err)
	assert.Contains(t, out, "PAGE_A")
	assert.Contains(t, errOut, "1 accesses")

	out, errOut, err = h.run("get", page)
	require.NoError(t, err)
	assert.Contains(t, out, "PAGE_A")
	assert.Contains(t, errOut, "2 accesses")
	assert.Equal(t, 1, h.fetches)
	assert.False(t, h.direct)
	assert.Equal(t, 10*time.Second, h.ttl)
}

func TestGet_RefetchesAfterTTL(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("get", "--ttl", "2s", page)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, h.ttl)

	h.clock.Advance(3 * time.Second)
	_, _, err = h.run("get", "--ttl", "2s", page)
	require.NoError(t, err)
	assert.Equal(t, 2, h.fetches)
}

func TestGet_Markdown(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("get", "--format", "markdown", page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# A\n"), out)
	assert.Contains(t, out, "PAGE_A")
}

func TestGet_Errors(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("get", "--format", "pdf", page)
	assert.ErrorContains(t, err, `unknown format "pdf"`)

	_, _, err = h.run("get", "--ttl", "-1s", page)
	assert.ErrorContains(t, err, "--ttl must be positive")

	_, _, err = h.run("get", "http://missing.example")
	var fe *pagecache.FetchError
	assert.ErrorAs(t, err, &fe)

	_, _, err = h.run("get")
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("count", page)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	_, _, _ = h.run("get", page)
	_, _, _ = h.run("get", "http://missing.example")
	_, _, _ = h.run("get", page)

	out, _, err = h.run("count", page)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, _, err = h.run("count", "http://missing.example")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("status", page)
	require.NoError(t, err)
	assert.Equal(t, "absent 0\n", out)

	_, _, err = h.run("get", page)
	require.NoError(t, err)
	out, _, err = h.run("status", page)
	require.NoError(t, err)
	assert.Equal(t, "fresh 1\n", out)

	h.clock.Advance(11 * time.Second)
	out, _, err = h.run("status", page)
	require.NoError(t, err)
	assert.Equal(t, "stale 1\n", out)
}

func TestDBFlagOpensDirectly(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("--db", filepath.Join(t.TempDir(), "other.bbolt"), "count", page)
	require.NoError(t, err)
	assert.True(t, h.direct)
}

func TestFlagsReachDaemonEnv(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "page-cache.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  bucket: custom\n"), 0o600))
	sock := filepath.Join(dir, "custom.sock")

	_, _, err := h.run("--config", cfgPath, "--socket", sock, "count", page)
	require.NoError(t, err)
	assert.False(t, h.direct)
	assert.Equal(t, sock, h.cfg.Cache.Socket)
	assert.Equal(t, "custom", h.cfg.Cache.Bucket)

	env := h.cfg.DaemonEnv()
	assert.Contains(t, env, config.EnvSocket+"="+sock)
	assert.Contains(t, env, config.EnvConfig+"="+cfgPath)
	assert.Contains(t, env, config.EnvDB+"="+h.cfg.Cache.DB)
}

func TestLogStats(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("log-stats", "--top", "1", "--mongo-uri", "mongodb://logs:27017")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://logs:27017", h.mongoURI)
	assert.Equal(t, "3 logs\n"+
		"Methods:\n"+
		"\tmethod GET: 2\n"+
		"\tmethod POST: 1\n"+
		"\tmethod PUT: 0\n"+
		"\tmethod PATCH: 0\n"+
		"\tmethod DELETE: 0\n"+
		"1 status check\n"+
		"IPs:\n"+
		"\t10.0.0.1: 2\n", out)
}

func TestLogStats_DefaultURI(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("log-stats", "--top", "0")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", h.mongoURI)
}
