package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Amund211/taskcache/internal/ports"
)

const PROD_DOMAIN_SUFFIX = "proxyd.dev"
const STAGING_DOMAIN_SUFFIX = "taskcache.pages.dev"

// assertCORSHeaders checks the three CORS response headers. The method and
// header lists are only sent on preflights from allowed origins.
func assertCORSHeaders(t *testing.T, header http.Header, origin string, allowed, preflight bool) {
	t.Helper()

	if !allowed {
		require.Empty(t, header.Get("Access-Control-Allow-Origin"))
		require.Empty(t, header.Get("Access-Control-Allow-Methods"))
		require.Empty(t, header.Get("Access-Control-Allow-Headers"))
		return
	}

	require.Equal(t, origin, header.Get("Access-Control-Allow-Origin"))

	if preflight {
		require.Equal(t, "GET,PUT,DELETE", header.Get("Access-Control-Allow-Methods"))
		require.Equal(t, "Content-Type", header.Get("Access-Control-Allow-Headers"))
	} else {
		require.Empty(t, header.Get("Access-Control-Allow-Methods"))
		require.Empty(t, header.Get("Access-Control-Allow-Headers"))
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	suffixes, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	require.NoError(t, err)

	allowedOrigins := []string{
		// Prod
		"https://proxyd.dev",
		"https://www.proxyd.dev",
		// Staging deploys each get a generated subdomain
		"https://53bcd591.taskcache.pages.dev",
		"https://new-api.taskcache.pages.dev",
		"https://taskcache.pages.dev",
	}

	deniedOrigins := []string{
		// Unrelated sites
		"example.com",
		"https://example.com",
		"https://www.example.com",
		"https://www.google.com",
		// Plain http
		"http://proxyd.dev",
		"http://www.proxyd.dev",
		// Lookalikes
		"https://proxyd-dev.com",
		"https://myproxyd.dev",
		"https://www.myproxyd.dev",
		"https://supertaskcache.pages.dev",
		"https://something.othertaskcache.pages.dev",
		// Degenerate values
		"",
		"proxyd",
		"pages.dev",
		"taskcache.pages.dev",
	}

	methods := []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}

	send := func(t *testing.T, handler http.HandlerFunc, method, origin string) *http.Response {
		t.Helper()

		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()

		handler(w, req)

		return w.Result()
	}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		t.Parallel()

		handler := ports.BuildCORSMiddleware(suffixes)(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("cached payload"))
			},
		)

		check := func(origin string, allowed bool) {
			t.Run(fmt.Sprintf("Origin:'%s'", origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range methods {
					method := method
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						resp := send(t, handler, method, origin)
						preflight := allowed && method == http.MethodOptions

						if preflight {
							require.Equal(t, http.StatusNoContent, resp.StatusCode)
						} else {
							// Preflights from disallowed origins fall through to the handler
							require.Equal(t, http.StatusOK, resp.StatusCode)
							body, err := io.ReadAll(resp.Body)
							require.NoError(t, err)
							require.Equal(t, "cached payload", string(body))
						}

						assertCORSHeaders(t, resp.Header, origin, allowed, preflight)
					})
				}
			})
		}

		for _, origin := range allowedOrigins {
			check(origin, true)
		}
		for _, origin := range deniedOrigins {
			check(origin, false)
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		t.Parallel()

		handler := ports.BuildCORSHandler(suffixes)

		check := func(origin string, allowed bool) {
			t.Run(fmt.Sprintf("Origin:'%s'", origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range methods {
					method := method
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						resp := send(t, handler, method, origin)

						require.Equal(t, http.StatusNoContent, resp.StatusCode)
						assertCORSHeaders(t, resp.Header, origin, allowed, allowed && method == http.MethodOptions)
					})
				}
			})
		}

		for _, origin := range allowedOrigins {
			check(origin, true)
		}
		for _, origin := range deniedOrigins {
			check(origin, false)
		}
	})

	t.Run("suffix validation", func(t *testing.T) {
		t.Parallel()

		_, err := ports.NewDomainSuffixes(".proxyd.dev")
		require.Error(t, err)

		_, err = ports.NewDomainSuffixes("https://proxyd.dev")
		require.Error(t, err)
	})
}
