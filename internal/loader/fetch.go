package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Faultbox/gltfview/internal/assets"
)

// Fetcher retrieves remote resources referenced by absolute URIs.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S) and remembers responses in Cache, so
// reloading an asset does not download its buffers again.
type HTTPFetcher struct {
	Client *http.Client
	Cache  *assets.Cache
}

// fetchTimeout bounds one download, so a stalled server fails the load.
const fetchTimeout = 60 * time.Second

// NewHTTPFetcher returns a fetcher with a bounded client and a fresh cache.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{Timeout: fetchTimeout},
		Cache:  assets.NewCache(),
	}
}

// Fetch downloads uri. Protocol-relative URIs use HTTPS. Any non-2xx status
// fails with ErrFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "//") {
		uri = "https:" + uri
	}
	if f.Cache != nil {
		if data, ok := f.Cache.Get(uri); ok {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, uri, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: %s", ErrFetchFailed, uri, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, uri, err)
	}
	if f.Cache != nil {
		f.Cache.Set(uri, data)
	}
	return data, nil
}
