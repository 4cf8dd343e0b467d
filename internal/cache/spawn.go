package cache

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/leonardcser/page-cache/internal/config"
	"github.com/leonardcser/page-cache/internal/logger"
)

// DaemonBinary is the executable name of the cache daemon.
const DaemonBinary = "page-cache-daemon"

// launch starts a daemon process with the given environment.
var launch = startDaemon

// Connect returns a Client for the daemon listening on sock, starting the
// daemon first when the socket does not answer. A started daemon inherits the
// current environment plus env ("KEY=value" entries) and is always told to
// listen on sock.
func Connect(sock string, env ...string) (*Client, error) {
	logger.Infof("Attempting to connect to cache daemon at %s", sock)
	err := Probe(sock)
	if err == nil {
		return NewClient(sock), nil
	}
	logger.Warnf("Failed to connect to cache daemon: %v, attempting to start daemon", err)
	if err := launch(daemonEnv(sock, env)); err != nil {
		logger.Errorf("Failed to start cache daemon: %v", err)
	} else {
		logger.Infof("Cache daemon started successfully")
	}
	// wait for socket to appear
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err = Probe(sock); err == nil {
			logger.Infof("Successfully connected to cache daemon")
			return NewClient(sock), nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	logger.Errorf("Failed to connect to cache daemon after startup attempt: %v", err)
	return nil, err
}

// Probe reports whether a daemon answers on sock.
func Probe(sock string) error {
	conn, err := net.DialTimeout("unix", sock, 200*time.Millisecond)
	if err != nil {
		return err
	}
	return conn.Close()
}

// daemonEnv is the environment of a spawned daemon. Later entries win.
func daemonEnv(sock string, extra []string) []string {
	env := append(os.Environ(), extra...)
	return append(env, config.EnvSocket+"="+sock)
}

func startDaemon(env []string) error {
	// 1) Try daemon binary next to this executable (works with absolute invocation)
	if exePath, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exePath), DaemonBinary)
		if _, statErr := os.Stat(sibling); statErr == nil {
			return spawn(sibling, env)
		}
	}

	// 2) Try PATH binary
	if path, err := exec.LookPath(DaemonBinary); err == nil {
		return spawn(path, env)
	}

	// 3) Try local binary in current working directory (best-effort)
	local := "./" + DaemonBinary
	if _, err := os.Stat(local); err == nil {
		return spawn(local, env)
	}

	return exec.ErrNotFound
}

func spawn(path string, env []string) error {
	cmd := exec.Command(path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Env = env
	return cmd.Start()
}
