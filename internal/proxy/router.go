package proxy

import "strings"

// Target identifies the upstream a request is dispatched to.
type Target int

const (
	// TargetAssetServer serves the SPA (bundler dev server in development).
	TargetAssetServer Target = iota
	// TargetChatBackend is the chat application's HTTP/WebSocket API.
	TargetChatBackend
	// TargetTenantAPI is the tenant-management REST API.
	TargetTenantAPI
)

func (t Target) String() string {
	switch t {
	case TargetChatBackend:
		return "chat_backend"
	case TargetTenantAPI:
		return "tenant_api"
	default:
		return "asset_server"
	}
}

// routingPrefix is the asset-routing base path. The asset server is
// configured with this as its own base path, so it is retained (not
// stripped) on asset-server routes.
const routingPrefix = "/proxy"

// bundlerPrefixes are dev-transport paths the browser requests without the
// routing prefix on direct navigation. They always belong to the asset
// server.
var bundlerPrefixes = []string{
	"/@vite/",
	"/@react-refresh",
	"/src/",
	"/node_modules/",
	"/@fs/",
}

// Route is a resolved dispatch decision.
type Route struct {
	Target Target
	// StripPrefix is removed from the path before forwarding, when set.
	StripPrefix string
}

// Resolve maps a request path onto the ordered rule table; the first match
// wins. /login and /get-credentials are handled before this is consulted.
func Resolve(path string) Route {
	switch {
	// Tenant API, with and without the routing prefix.
	case strings.HasPrefix(path, "/static/"):
		return Route{Target: TargetTenantAPI}
	case strings.HasPrefix(path, "/api/v1/"):
		return Route{Target: TargetTenantAPI}
	case strings.HasPrefix(path, routingPrefix+"/api/v1/"):
		return Route{Target: TargetTenantAPI, StripPrefix: routingPrefix}

	// Chat backend API and OAuth, with and without the routing prefix.
	case strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/oauth/"):
		return Route{Target: TargetChatBackend}
	case strings.HasPrefix(path, routingPrefix+"/api/"), strings.HasPrefix(path, routingPrefix+"/oauth/"):
		return Route{Target: TargetChatBackend, StripPrefix: routingPrefix}
	}

	// Bundler paths reach the asset server even without the routing prefix.
	for _, p := range bundlerPrefixes {
		if strings.HasPrefix(path, p) {
			return Route{Target: TargetAssetServer}
		}
	}

	// Everything else, prefixed or not, is the asset server. The routing
	// prefix is retained: the asset server expects it as its base path.
	return Route{Target: TargetAssetServer}
}

// StripPath removes route's prefix from path, normalizing an emptied path
// back to "/".
func (r Route) StripPath(path string) string {
	if r.StripPrefix == "" {
		return path
	}
	stripped := strings.TrimPrefix(path, r.StripPrefix)
	if stripped == "" {
		return "/"
	}
	return stripped
}
