package obs

import "strings"

// Resource collections whose second path segment is an entity identifier.
var idCollections = map[string]struct{}{
	"listings":      {},
	"reviews":       {},
	"users":         {},
	"notifications": {},
}

// CanonicalPath collapses entity identifiers in request paths so metric
// labels stay low-cardinality: /v1/listings/01ABC/approve becomes
// /v1/listings/:id/approve.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	if _, ok := idCollections[parts[1]]; !ok {
		return path
	}
	// /v1/notifications/stream is a fixed route, not an identifier.
	if parts[2] == "stream" {
		return path
	}
	parts[2] = ":id"
	return "/" + strings.Join(parts, "/")
}
