package cache

// Simple JSON protocol for cache daemon over a Unix domain socket.
// One request -> one response using json.Encoder/Decoder per connection.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpIncr   = "incr"
	OpExists = "exists"
)

type Request struct {
	Op         string `json:"op"` // "get" | "put" | "delete" | "incr" | "exists"
	Key        string `json:"key"`
	Value      []byte `json:"value,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
	// TTLMillis takes precedence over TTLSeconds when set.
	TTLMillis int64 `json:"ttl_ms,omitempty"`
}

type Response struct {
	OK     bool   `json:"ok"`
	Value  []byte `json:"value,omitempty"`
	Count  int64  `json:"count,omitempty"`
	Exists bool   `json:"exists,omitempty"`
	Error  string `json:"error,omitempty"`
}
