package proxy

import (
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/config"
)

// refreshPath is the downstream token-refresh endpoint. Its handler needs
// both session cookies even when the browser only replays one of them.
const refreshPath = "/api/auth/refresh"

// sessionCookies must both be present on refresh requests.
var sessionCookies = []string{"refreshToken", "token_provider"}

// Forwarder owns one reverse proxy per upstream target.
type Forwarder struct {
	backend *httputil.ReverseProxy
	asset   *httputil.ReverseProxy
	tenant  *httputil.ReverseProxy

	backendURL *url.URL
	assetURL   *url.URL
	tenantURL  *url.URL
}

// NewForwarder parses the upstream URLs and builds the three proxies.
// rewriteHTML, when non-nil, post-processes asset-server responses.
func NewForwarder(cfg *config.Config, rewriteHTML func(*http.Response) error) (*Forwarder, error) {
	backendURL, err := url.Parse(cfg.ChatBackendURL)
	if err != nil {
		return nil, err
	}
	assetURL, err := url.Parse(cfg.AssetServerURL)
	if err != nil {
		return nil, err
	}
	tenantURL, err := url.Parse(cfg.TenantAPIURL)
	if err != nil {
		return nil, err
	}

	transport := newTransport()
	f := &Forwarder{
		backendURL: backendURL,
		assetURL:   assetURL,
		tenantURL:  tenantURL,
	}

	f.backend = newProxy(backendURL, transport)
	origBackend := f.backend.Director
	f.backend.Director = func(req *http.Request) {
		origBackend(req)
		req.Host = backendURL.Host
		if strings.Contains(req.URL.Path, refreshPath) {
			mergeSessionCookies(req)
		}
	}

	f.backend.ModifyResponse = scrubCORS

	f.asset = newProxy(assetURL, transport)
	origAsset := f.asset.Director
	f.asset.Director = func(req *http.Request) {
		origAsset(req)
		req.Host = assetURL.Host
	}
	f.asset.ModifyResponse = func(resp *http.Response) error {
		if err := scrubCORS(resp); err != nil {
			return err
		}
		if rewriteHTML != nil {
			return rewriteHTML(resp)
		}
		return nil
	}

	f.tenant = newProxy(tenantURL, transport)
	origTenant := f.tenant.Director
	f.tenant.Director = func(req *http.Request) {
		origTenant(req)
		req.Host = tenantURL.Host
	}
	f.tenant.ModifyResponse = scrubCORS

	return f, nil
}

// scrubCORS removes upstream CORS headers. The gateway sets its own on the
// way in; leaving the upstream's produces duplicate header values, which
// browsers reject.
func scrubCORS(resp *http.Response) error {
	for _, h := range []string{
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Credentials",
		"Access-Control-Allow-Methods",
		"Access-Control-Allow-Headers",
		"Access-Control-Expose-Headers",
		"Access-Control-Max-Age",
	} {
		resp.Header.Del(h)
	}
	return nil
}

// Proxy returns the reverse proxy for target.
func (f *Forwarder) Proxy(target Target) *httputil.ReverseProxy {
	switch target {
	case TargetChatBackend:
		return f.backend
	case TargetTenantAPI:
		return f.tenant
	default:
		return f.asset
	}
}

// UpstreamURL returns the base URL for target.
func (f *Forwarder) UpstreamURL(target Target) *url.URL {
	switch target {
	case TargetChatBackend:
		return f.backendURL
	case TargetTenantAPI:
		return f.tenantURL
	default:
		return f.assetURL
	}
}

func newProxy(target *url.URL, transport *http.Transport) *httputil.ReverseProxy {
	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = transport
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).
			Str("upstream", target.Host).Msg("upstream unreachable")
		writeError(w, "upstream unreachable", http.StatusBadGateway)
	}
	return p
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DefaultDialTimeout,
			KeepAlive: config.DefaultDialTimeout,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        config.DefaultMaxIdleConns,
		IdleConnTimeout:     config.DefaultIdleConnTimeout,
		TLSHandshakeTimeout: config.DefaultDialTimeout / 3,
	}
}

// mergeSessionCookies re-adds session cookies to the outbound Cookie header
// when the inbound request carried them as cookies but the header line the
// upstream will see is missing them.
func mergeSessionCookies(req *http.Request) {
	header := req.Header.Get("Cookie")
	for _, name := range sessionCookies {
		c, err := req.Cookie(name)
		if err != nil || strings.Contains(header, name+"=") {
			continue
		}
		pair := name + "=" + c.Value
		if header == "" {
			header = pair
		} else {
			header += "; " + pair
		}
	}
	if header != "" {
		req.Header.Set("Cookie", header)
	}
}
