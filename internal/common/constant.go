package common

const (
	// AuthorizationHeaderName carries the bearer access token on cloud requests.
	AuthorizationHeaderName = "authorization"

	// DefaultPageSize is the page length used by paginated queries unless
	// a caller overrides it.
	DefaultPageSize = 20
)
