package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/metrics"
	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/service"
)

const (
	maxRequestBytes  = 1 << 20
	mailboxDrainWait = 2 * time.Second
)

// Tools is the tool service surface the handlers call.
type Tools interface {
	Convert(ctx context.Context, req service.ConvertRequest, notifier progress.Notifier) service.ConvertResponse
	GetInfo(ctx context.Context, req service.InfoRequest) service.InfoResponse
}

// ToolHandler exposes the conversion tools over HTTP.
type ToolHandler struct {
	tools  Tools
	logger *zap.Logger
}

// NewToolHandler wires the tool service and logger.
func NewToolHandler(tools Tools, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{tools: tools, logger: logger}
}

// ListTools handles GET /v1/tools.
func (h *ToolHandler) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         "docbridge",
		"instructions": service.Instructions,
		"tools":        service.Tools(),
	})
}

// GetInfo handles POST /v1/tools/get_info.
func (h *ToolHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	var req service.InfoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := h.tools.GetInfo(r.Context(), req)
	metrics.ObserveToolCall("get_info", resultLabel(resp.Success, resp.ErrorKind))
	writeJSON(w, statusFor(resp.Success, resp.ErrorKind), resp)
}

// Convert handles POST /v1/tools/convert. With Accept: text/event-stream the
// response is a stream of "progress" events followed by one "result" event;
// otherwise it is the JSON result alone.
func (h *ToolHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req service.ConvertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stream, ok := newSSEWriter(w)
	if !wantsEventStream(r) || !ok {
		resp := h.tools.Convert(r.Context(), req, nil)
		metrics.ObserveToolCall("convert", resultLabel(resp.Success, resp.ErrorKind))
		writeJSON(w, statusFor(resp.Success, resp.ErrorKind), resp)
		return
	}

	metrics.IncProgressStreams()
	defer metrics.DecProgressStreams()
	stream.start()

	box := progress.NewMailbox(r.Context(), func(_ context.Context, u progress.Update) error {
		return stream.event("progress", u)
	}, h.logger)
	resp := h.tools.Convert(r.Context(), req, box)
	metrics.ObserveToolCall("convert", resultLabel(resp.Success, resp.ErrorKind))

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), mailboxDrainWait)
	defer cancel()
	if err := box.Close(drainCtx); err != nil {
		h.logger.Debug("progress mailbox did not drain", zap.Error(err))
	}
	if err := stream.finish("result", resp); err != nil {
		h.logger.Debug("result event not delivered", zap.String("run_id", resp.RunID), zap.Error(err))
	}

	// An undrained mailbox fails its next write against the finished stream
	// and exits; its drop count is only final after that.
	select {
	case <-box.Done():
		metrics.AddDroppedNotifications(box.Dropped())
	default:
		go func() {
			<-box.Done()
			metrics.AddDroppedNotifications(box.Dropped())
		}()
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusFor maps a tool result to an HTTP status.
func statusFor(success bool, kind conversion.Kind) int {
	if success {
		return http.StatusOK
	}
	switch kind {
	case conversion.KindNotFound:
		return http.StatusNotFound
	case conversion.KindAuthenticationRequired:
		return http.StatusUnauthorized
	case conversion.KindAuthenticationFailed:
		return http.StatusForbidden
	case conversion.KindInvalidArgument:
		return http.StatusBadRequest
	case conversion.KindConversionFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func resultLabel(success bool, kind conversion.Kind) string {
	if success {
		return "success"
	}
	if kind == "" {
		return string(conversion.KindInternal)
	}
	return string(kind)
}
