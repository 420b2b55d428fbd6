package llm

import (
	"maps"
	"net/http"
	"slices"
	"sync"
)

// Provider adapts the client to one generation API wire format. Adapters
// live in llm/providers and register themselves from init.
type Provider interface {
	Name() string

	// BuildURL appends the provider's request path to baseURL, or to the
	// provider's public endpoint when baseURL is empty.
	BuildURL(baseURL string) string

	// SetHeaders adds authentication and provider-specific headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody encodes req for model. maxTokens is already resolved
	// from the request and endpoint.
	BuildRequestBody(model string, req Request, maxTokens int) ([]byte, error)

	// ParseResponse decodes the content and usage of a 2xx body.
	ParseResponse(body []byte) (*Response, error)
}

var providers = struct {
	sync.RWMutex
	byName map[string]Provider
}{byName: make(map[string]Provider)}

// RegisterProvider makes p available to endpoints naming p.Name(). A later
// registration under the same name replaces the earlier one.
func RegisterProvider(p Provider) {
	providers.Lock()
	defer providers.Unlock()
	providers.byName[p.Name()] = p
}

// GetProvider returns the provider registered under name, or nil.
func GetProvider(name string) Provider {
	providers.RLock()
	defer providers.RUnlock()
	return providers.byName[name]
}

// ListProviders returns the registered provider names in sorted order.
func ListProviders() []string {
	providers.RLock()
	defer providers.RUnlock()
	return slices.Sorted(maps.Keys(providers.byName))
}
