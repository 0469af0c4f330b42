package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/instihub/chatgate/internal/config"
	"github.com/instihub/chatgate/internal/identity"
)

// handshakeHeaders are negotiated by the WebSocket layer itself; copying
// them into the upstream dial corrupts the handshake.
var handshakeHeaders = map[string]bool{
	"sec-websocket-key":        true,
	"sec-websocket-accept":     true,
	"sec-websocket-version":    true,
	"sec-websocket-protocol":   true,
	"sec-websocket-extensions": true,
	"upgrade":                  true,
	"connection":               true,
}

// isUpgrade reports whether the request asks for a WebSocket upgrade.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// tunnel relays a duplex WebSocket stream between the client and target.
// The upstream handshake carries the inbound headers (minus the handshake
// set) plus the identity headers for email. Both directions report into one
// error channel and the first failure tears the whole tunnel down; there is
// no half-open keep-alive.
func tunnel(w http.ResponseWriter, r *http.Request, target *url.URL, email string) {
	ctx := r.Context()

	hdr := http.Header{}
	for k, vals := range r.Header {
		if handshakeHeaders[strings.ToLower(k)] {
			continue
		}
		for _, v := range vals {
			hdr.Add(k, v)
		}
	}
	identity.Inject(hdr, email)

	upstreamURL := url.URL{
		Scheme:   wsScheme(target.Scheme),
		Host:     target.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}

	upstream, resp, err := websocket.Dial(ctx, upstreamURL.String(), &websocket.DialOptions{
		HTTPHeader: hdr,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		log.Error().Err(err).Str("upstream", upstreamURL.Host).Str("path", r.URL.Path).
			Msg("websocket dial failed")
		writeError(w, "upstream unreachable", http.StatusBadGateway)
		return
	}

	client, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("websocket accept failed")
		_ = upstream.Close(websocket.StatusInternalError, "client upgrade failed")
		return
	}

	client.SetReadLimit(config.MaxTunnelMessageSize)
	upstream.SetReadLimit(config.MaxTunnelMessageSize)

	// Capacity 2 so the second direction never blocks reporting.
	errc := make(chan error, 2)
	pump := func(dst, src *websocket.Conn) {
		for {
			typ, data, err := src.Read(ctx)
			if err != nil {
				errc <- err
				return
			}
			if err := dst.Write(ctx, typ, data); err != nil {
				errc <- err
				return
			}
		}
	}
	go pump(upstream, client)
	go pump(client, upstream)

	err = <-errc
	log.Debug().Err(err).Str("path", r.URL.Path).Msg("tunnel closed")
	_ = client.CloseNow()
	_ = upstream.CloseNow()
}

func wsScheme(httpScheme string) string {
	if httpScheme == "https" || httpScheme == "wss" {
		return "wss"
	}
	return "ws"
}
