package llm

import (
	"sync/atomic"

	"github.com/c360studio/yearclue/model"
)

var defaultClient atomic.Pointer[Client]

// Default returns the process-wide client. Until InitDefault is called it
// is built on first use from the global model registry.
func Default() *Client {
	if c := defaultClient.Load(); c != nil {
		return c
	}
	defaultClient.CompareAndSwap(nil, NewClient(model.Global()))
	return defaultClient.Load()
}

// InitDefault installs c as the process-wide client, replacing any previous
// one. A nil c makes the next Default build a fresh client.
func InitDefault(c *Client) {
	defaultClient.Store(c)
}
