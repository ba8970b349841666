package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/progress"
)

func TestSSEWriterRejectsWritesAfterFinish(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	stream, ok := newSSEWriter(rec)
	require.True(t, ok)
	stream.start()

	require.NoError(t, stream.event("progress", progress.Update{Current: 0, Total: 2}))
	require.NoError(t, stream.finish("result", map[string]bool{"success": true}))

	err := stream.event("progress", progress.Update{Current: 2, Total: 2})
	require.True(t, errors.Is(err, errStreamFinished))
	require.True(t, errors.Is(stream.finish("result", nil), errStreamFinished))

	body := rec.Body.String()
	require.Equal(t, 1, strings.Count(body, "event: progress"))
	require.True(t, strings.HasSuffix(body, "event: result\ndata: {\"success\":true}\n\n"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUndrainedMailboxStopsAtFinishedStream(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	stream, ok := newSSEWriter(rec)
	require.True(t, ok)
	stream.start()

	gate := make(chan struct{})
	box := progress.NewMailbox(context.Background(), func(_ context.Context, u progress.Update) error {
		if u.Current == 0 {
			<-gate
		}
		return stream.event("progress", u)
	}, zap.NewNop())
	box.Notify(0, 2)
	box.Notify(1, 2)
	box.Notify(2, 2)

	drainCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, box.Close(drainCtx))
	require.NoError(t, stream.finish("result", map[string]bool{"success": true}))

	close(gate)
	select {
	case <-box.Done():
	case <-time.After(5 * time.Second):
		require.FailNow(t, "mailbox did not exit after the stream finished")
	}

	require.Zero(t, box.Delivered())
	require.Equal(t, int64(3), box.Dropped())
	require.NotContains(t, rec.Body.String(), "event: progress")
}
