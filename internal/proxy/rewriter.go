package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NewHTMLRewriter returns a ModifyResponse hook for the asset-server proxy.
//
// The asset server is configured with the gateway's routing prefix as its
// base path, so relative URLs in its HTML already resolve correctly. What
// does not survive proxying are literal WebSocket endpoint URLs the bundler
// emits for its dev transport: they point at the internal asset port, which
// is unreachable from the browser. Those are rewritten to the public
// gateway port. Replacing the bare `ws://host:port/` form also covers the
// single- and double-quoted spellings, since the quote precedes the match.
func NewHTMLRewriter(assetHost, publicPort string) func(*http.Response) error {
	hostname := assetHost
	if idx := strings.Index(assetHost, ":"); idx >= 0 {
		hostname = assetHost[:idx]
	}
	replacements := [][2]string{
		{"ws://" + assetHost + "/", "ws://" + hostname + ":" + publicPort + "/"},
		{"wss://" + assetHost + "/", "wss://" + hostname + ":" + publicPort + "/"},
	}

	return func(resp *http.Response) error {
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()

		html := string(body)
		for _, r := range replacements {
			html = strings.ReplaceAll(html, r[0], r[1])
		}

		resp.Body = io.NopCloser(strings.NewReader(html))
		resp.ContentLength = int64(len(html))
		resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(html)))
		return nil
	}
}
