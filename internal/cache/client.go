package cache

import (
	"encoding/json"
	"net"
	"time"
)

// Client implements KV over a Unix socket.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, dialTimeout: 500 * time.Millisecond}
}

// SocketPath returns the daemon socket this client talks to.
func (c *Client) SocketPath() string { return c.socketPath }

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// roundTrip sends one request and decodes one response on a fresh connection.
func (c *Client) roundTrip(req Request) (Response, error) {
	var resp Response
	err := c.withConn(func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return err
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return err
		}
		if !resp.OK {
			return decodeError(resp.Error)
		}
		return nil
	})
	return resp, err
}

func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.roundTrip(Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), resp.Value...), nil
}

func (c *Client) Put(key string, value []byte, ttl time.Duration) error {
	_, err := c.roundTrip(Request{
		Op:         OpPut,
		Key:        key,
		Value:      value,
		TTLSeconds: int64(ttl / time.Second),
		TTLMillis:  wireMillis(ttl),
	})
	return err
}

// wireMillis rounds a positive ttl up to whole milliseconds so that it never
// reaches the daemon as 0, which would select the daemon's default TTL.
func wireMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

func (c *Client) Delete(key string) error {
	_, err := c.roundTrip(Request{Op: OpDelete, Key: key})
	return err
}

func (c *Client) Incr(key string) (int64, error) {
	resp, err := c.roundTrip(Request{Op: OpIncr, Key: key})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) Exists(key string) (bool, error) {
	resp, err := c.roundTrip(Request{Op: OpExists, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// RemoteError is an error reported by the daemon that has no local sentinel.
type RemoteError struct{ Msg string }

func (e *RemoteError) Error() string { return e.Msg }

// decodeError maps a daemon error message back to the sentinel it came from.
func decodeError(msg string) error {
	switch msg {
	case ErrNotFound.Error():
		return ErrNotFound
	case ErrExpired.Error():
		return ErrExpired
	case ErrNotInteger.Error():
		return ErrNotInteger
	}
	return &RemoteError{Msg: msg}
}
