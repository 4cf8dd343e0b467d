package cache

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/leonardcser/page-cache/internal/logger"
)

// Serve accepts connections on l and answers protocol requests against kv
// until l is closed. It returns nil when the listener was closed.
func Serve(l net.Listener, kv KV) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warnf("accept failed: %v", err)
			continue
		}
		go handleConn(conn, kv)
	}
}

func handleConn(conn net.Conn, kv KV) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		_ = enc.Encode(dispatch(kv, req))
	}
}

func dispatch(kv KV, req Request) Response {
	switch req.Op {
	case OpGet:
		v, err := kv.Get(req.Key)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Value: v}
	case OpPut:
		ttl := time.Duration(req.TTLSeconds) * time.Second
		if req.TTLMillis > 0 {
			ttl = time.Duration(req.TTLMillis) * time.Millisecond
		}
		if err := kv.Put(req.Key, req.Value, ttl); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpDelete:
		if err := kv.Delete(req.Key); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpIncr:
		n, err := kv.Incr(req.Key)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Count: n}
	case OpExists:
		ok, err := kv.Exists(req.Key)
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Exists: ok}
	default:
		return Response{OK: false, Error: "unknown op"}
	}
}

func errResponse(err error) Response {
	if !IsMiss(err) {
		logger.Errorf("cache op failed: %v", err)
	}
	return Response{OK: false, Error: err.Error()}
}
