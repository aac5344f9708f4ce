package gateway

import (
	"context"
	"net/url"
	"strings"

	"github.com/roach88/axiom/internal/router"
)

// CourseSource serves a course document from an API endpoint.
// It satisfies player.Source.
type CourseSource struct {
	Client   *Client
	Endpoint string
}

// Name implements player.Source.
func (s CourseSource) Name() string {
	return s.Client.URL(s.Endpoint)
}

// Fetch implements player.Source.
func (s CourseSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.Client.Bytes(ctx, s.Endpoint)
}

// Loader returns a route data loader that GETs endpoint. Each ":name"
// segment of endpoint is replaced by the escaped route param of that name.
func (c *Client) Loader(endpoint string) router.Loader {
	return func(ctx context.Context, params router.Params) (any, error) {
		return c.Get(ctx, Expand(endpoint, params))
	}
}

// Expand substitutes ":name" segments with escaped params. Segments with
// no matching param are left as is.
func Expand(endpoint string, params router.Params) string {
	segs := strings.Split(endpoint, "/")
	for i, seg := range segs {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if v, ok := params[seg[1:]]; ok {
			segs[i] = url.PathEscape(v)
		}
	}
	return strings.Join(segs, "/")
}
