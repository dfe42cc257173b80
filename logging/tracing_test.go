package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Amund211/taskcache/logging"
)

func TestTracingLogHandler(t *testing.T) {
	t.Parallel()

	t.Run("no active span", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(buf, nil)))

		ctx := t.Context()
		logger.InfoContext(ctx, "Hello")

		entries := decodeEntries(t, buf)
		require.Len(t, entries, 1)
		require.Equal(t, map[string]any{
			"level": "INFO",
			"msg":   "Hello",
		}, entries[0])
	})

	t.Run("active span", func(t *testing.T) {
		t.Parallel()

		buf := &bytes.Buffer{}
		logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(buf, nil)))

		spanContext := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{0x01},
			SpanID:     trace.SpanID{0x02},
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(t.Context(), spanContext)

		logger.InfoContext(ctx, "Hello")

		entries := decodeEntries(t, buf)
		require.Len(t, entries, 1)

		logged := entries[0]
		require.Equal(t, spanContext.TraceID().String(), logged["traceId"])
		require.Equal(t, spanContext.SpanID().String(), logged["spanId"])
		require.Equal(t, true, logged["traceSampled"])
	})
}
