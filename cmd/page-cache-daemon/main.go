package main

import (
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leonardcser/page-cache/internal/cache"
	"github.com/leonardcser/page-cache/internal/config"
	"github.com/leonardcser/page-cache/internal/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Path, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Close()

	sock := cfg.Cache.Socket
	if err := cache.Probe(sock); err == nil {
		logger.Infof("Cache daemon already listening on %s", sock)
		return
	}
	// Ensure socket dir exists and remove stale socket
	_ = os.MkdirAll(filepath.Dir(sock), 0o755)
	_ = os.Remove(sock)

	l, err := net.Listen("unix", sock)
	if err != nil {
		panic(err)
	}
	_ = os.Chmod(sock, 0o600)

	_ = os.MkdirAll(filepath.Dir(cfg.Cache.DB), 0o755)
	store, err := cache.Open(cfg.Cache.DB, cache.Options{Bucket: cfg.Cache.Bucket, DefaultTTL: cfg.Cache.TTL})
	if err != nil {
		panic(err)
	}
	defer store.Close()
	logger.Infof("Cache daemon listening on %s (db %s)", sock, cfg.Cache.DB)

	done := make(chan struct{})
	go sweep(store, cfg.Cache.SweepInterval, done)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logger.Infof("Received %s, shutting down", s)
		close(done)
		_ = l.Close()
	}()

	if err := cache.Serve(l, store); err != nil {
		logger.Errorf("serve: %v", err)
	}
	_ = os.Remove(sock)
}

// sweep reclaims expired entries every interval until done is closed.
func sweep(store *cache.Store, interval time.Duration, done <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			n, err := store.Sweep()
			if err != nil {
				logger.Warnf("sweep failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("swept %d expired entries", n)
			}
		}
	}
}
