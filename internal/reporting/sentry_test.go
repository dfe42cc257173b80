package reporting

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	t.Run("connection reset by peer", func(t *testing.T) {
		t.Parallel()

		err := `failed to send request: Get "https://upstream.example.com/v1/data/deadbeef8315465d9d44cfc238c64f71": read tcp [dead:beef:feb1:d745::c001]:64079->[dead:beef::6811:112a]:443: read: connection reset by peer`
		want := `failed to send request: Get "https://upstream.example.com/v1/data/<key>": read tcp <host>-><host>: read: connection reset by peer`
		require.Equal(t, want, sanitizeError(err))
	})
	t.Run("context deadline", func(t *testing.T) {
		t.Parallel()

		err := `failed to send request: Get "https://upstream.example.com/v1/data/some-report-key": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`
		want := `failed to send request: Get "https://upstream.example.com/v1/data/<key>": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`
		require.Equal(t, want, sanitizeError(err))
	})
	t.Run("bare uuids are masked", func(t *testing.T) {
		t.Parallel()

		err := `entry deadbeef-8315-465d-9d44-cfc238c64f71 could not be decoded`
		want := `entry <uuid> could not be decoded`
		require.Equal(t, want, sanitizeError(err))
	})
	t.Run("misc ipv6", func(t *testing.T) {
		t.Parallel()

		ips := []string{
			`1:2:3:4:5:6:7:8`,
			`1::`,
			`1:2:3:4:5:6:7::`,
			`1::8`,
			`1:2:3:4:5:6::8`,
			`1::7:8`,
			`1:2:3:4:5::7:8`,
			`1:2:3:4:5::8`,
			`1::6:7:8`,
			`1:2:3:4::6:7:8`,
			`1:2:3:4::8`,
			`1::5:6:7:8`,
			`1:2:3::5:6:7:8`,
			`1:2:3::8`,
			`1::4:5:6:7:8`,
			`1:2::4:5:6:7:8`,
			`1:2::8`,
			`1::3:4:5:6:7:8`,
			`::2:3:4:5:6:7:8`,
			`::8`,
			`::`,
		}
		for _, ip := range ips {
			t.Run(ip, func(t *testing.T) {
				t.Parallel()

				require.Equal(t, "<host>", sanitizeError(fmt.Sprintf("[%s]:1234", ip)))
			})
		}
	})
	t.Run("lookup keys in request urls", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			error string
			want  string
		}{
			{
				error: `failed to send request: Get "http://localhost:9000/reports/weekly-2024-11": connection refused`,
				want:  `failed to send request: Get "http://localhost:9000/reports/<key>": connection refused`,
			},
			{
				// Don't match eagerly
				error: `failed to send request: Get "https://upstream.example.com/v1/data/somekey": failed due to "some sort of error"`,
				want:  `failed to send request: Get "https://upstream.example.com/v1/data/<key>": failed due to "some sort of error"`,
			},
			{
				// Don't match eagerly
				error: `failed to send request: Get "https://upstream.example.com/v1/data/somekey":"someextraerrorhere"`,
				want:  `failed to send request: Get "https://upstream.example.com/v1/data/<key>":"someextraerrorhere"`,
			},
			{
				// Trailing slash leaves nothing to mask
				error: `failed to send request: Get "https://upstream.example.com/": connection refused`,
				want:  `failed to send request: Get "https://upstream.example.com/": connection refused`,
			},
			{
				// No url, no match
				error: `failed to read response body: unexpected EOF`,
				want:  `failed to read response body: unexpected EOF`,
			},
		}
		for _, tc := range cases {
			t.Run(tc.error, func(t *testing.T) {
				t.Parallel()

				require.Equal(t, tc.want, sanitizeError(tc.error))
			})
		}
	})
}
