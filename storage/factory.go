package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

// NewRequestStore creates a request store from a location URI.
//
// Supported schemes:
//   - sqlite:// - SQLite database file (sqlite://validators.db or
//     sqlite:///var/lib/validators.db)
//   - memory:// - Non-durable in-memory store, for tests and development
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func NewRequestStore(locationURI string, log *slog.Logger) (interfaces.RequestStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid storage URI %q: %v", interfaces.ErrInvalidArgument, locationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "sqlite":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("%w: sqlite URI %q has no path", interfaces.ErrInvalidArgument, locationURI)
		}
		return NewSqliteStore(path, log)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme: %s", u.Scheme)
	}
}
