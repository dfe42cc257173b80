package ports

import (
	"fmt"
	"net/http"
	"strings"
)

// DomainSuffixes holds the origins allowed to make cross-origin requests.
// Matching is precomputed at construction: an origin is allowed when it is
// exactly https://<suffix> or an https subdomain of <suffix>.
type DomainSuffixes struct {
	exactOrigins []string
	dotSuffixes  []string
}

func NewDomainSuffixes(suffixes ...string) (*DomainSuffixes, error) {
	allowed := &DomainSuffixes{
		exactOrigins: make([]string, 0, len(suffixes)),
		dotSuffixes:  make([]string, 0, len(suffixes)),
	}

	for _, suffix := range suffixes {
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}

		allowed.exactOrigins = append(allowed.exactOrigins, "https://"+suffix)
		allowed.dotSuffixes = append(allowed.dotSuffixes, "."+suffix)
	}

	return allowed, nil
}

func (suffixes *DomainSuffixes) AnyMatch(origin string) bool {
	// Only https origins are ever allowed
	if !strings.HasPrefix(origin, "https://") {
		return false
	}

	for _, exact := range suffixes.exactOrigins {
		if origin == exact {
			return true
		}
	}

	for _, dotSuffix := range suffixes.dotSuffixes {
		if strings.HasSuffix(origin, dotSuffix) {
			return true
		}
	}

	return false
}

func BuildCORSMiddleware(allowedSuffixes *DomainSuffixes) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowedSuffixes.AnyMatch(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET,PUT,DELETE")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next(w, r)
		}
	}
}

func BuildCORSHandler(allowedSuffixes *DomainSuffixes) http.HandlerFunc {
	return BuildCORSMiddleware(allowedSuffixes)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
