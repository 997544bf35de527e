package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/tts-gateway/internal/shared"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/labstack/echo/v4"
)

const (
	DefaultMaxInputLength = 4096
	defaultFormat         = "mp3"
	defaultUsageHours     = 24
	usageRecordTimeout    = 2 * time.Second
)

type Handler struct {
	converter      synthesis.Converter
	usage          usage.Recorder
	maxInputLength int
	logger         *slog.Logger
}

// NewHandler wires the HTTP surface to a converter. recorder may be nil, in
// which case usage is neither recorded nor served.
func NewHandler(converter synthesis.Converter, recorder usage.Recorder, maxInputLength int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxInputLength <= 0 {
		maxInputLength = DefaultMaxInputLength
	}
	return &Handler{
		converter:      converter,
		usage:          recorder,
		maxInputLength: maxInputLength,
		logger:         logger.With("handler", "speech"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/audio/speech", h.HandleSpeech)
	g.GET("/tts", h.HandleLegacy)
	g.GET("/usage", h.HandleUsage)
}

type SpeechRequest struct {
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

type UsageResponse struct {
	Hours  int             `json:"hours"`
	Totals usage.Totals    `json:"totals"`
	Usage  []*usage.Hourly `json:"usage"`
}

// HandleSpeech converts one input and answers with the raw audio.
// @Summary      Create speech
// @Description  Synthesizes the input text over the shared backend connection and returns the audio in the requested format (mp3, opus or wav). Defaults to mp3.
// @Tags         audio
// @Accept       json
// @Produce      audio/mpeg,audio/ogg,audio/wav
// @Param        request body SpeechRequest true "Speech synthesis request"
// @Success      200 {file} binary "Audio data in requested format"
// @Failure      400 {object} shared.APIError "Invalid request (missing input, input too long, unsupported format)"
// @Failure      429 {object} shared.APIError "Rate limit exceeded"
// @Failure      502 {object} shared.APIError "Backend unavailable or connection closed"
// @Failure      504 {object} shared.APIError "Synthesis timed out"
// @Router       /v1/audio/speech [post]
func (h *Handler) HandleSpeech(c echo.Context) error {
	var req SpeechRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "Invalid request body")
	}

	if req.Input == "" {
		return shared.BadRequest("missing_input", "Input text is required")
	}
	if len(req.Input) > h.maxInputLength {
		return shared.BadRequest("input_too_long", fmt.Sprintf("Input text exceeds maximum length of %d characters", h.maxInputLength))
	}
	if req.ResponseFormat == "" {
		req.ResponseFormat = defaultFormat
	}
	contentType, ok := synthesis.ContentType(req.ResponseFormat)
	if !ok {
		return invalidFormat(req.ResponseFormat)
	}

	audio, err := h.convert(c.Request().Context(), req.Input, req.ResponseFormat)
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, contentType, audio)
}

// HandleUsage returns hourly conversion counters, newest first
// @Summary      Get usage
// @Description  Returns per-format hourly conversion counters for the last N hours along with their totals.
// @Tags         usage
// @Produce      json
// @Param        hours query int false "Number of hours to report (1-168)" default(24)
// @Success      200 {object} UsageResponse "Hourly usage"
// @Failure      500 {object} shared.APIError "Failed to read usage"
// @Failure      503 {object} shared.APIError "Usage tracking not configured"
// @Router       /v1/usage [get]
func (h *Handler) HandleUsage(c echo.Context) error {
	if h.usage == nil {
		return shared.ServiceUnavailable("usage_disabled", "Usage tracking is not configured")
	}

	hours := defaultUsageHours
	if hoursStr := c.QueryParam("hours"); hoursStr != "" {
		if hr, err := strconv.Atoi(hoursStr); err == nil && hr > 0 && hr <= usage.MaxHours {
			hours = hr
		}
	}

	rows, err := h.usage.GetHourly(c.Request().Context(), hours)
	if err != nil {
		h.logger.Error("failed to get usage", "error", err)
		return shared.InternalError("get_usage_failed", "Failed to get usage")
	}
	if rows == nil {
		rows = []*usage.Hourly{}
	}

	return c.JSON(http.StatusOK, UsageResponse{
		Hours:  hours,
		Totals: usage.Sum(rows),
		Usage:  rows,
	})
}

// convert runs one conversion, records it, and maps failures to HTTP errors.
func (h *Handler) convert(ctx context.Context, text, format string) ([]byte, error) {
	start := time.Now()
	audio, err := h.converter.Convert(ctx, text, format)
	h.record(ctx, usage.Conversion{
		Format:  format,
		Bytes:   len(audio),
		Latency: time.Since(start),
		Failed:  err != nil,
	})
	if err != nil {
		h.logger.Error("conversion failed", "format", format, "text_length", len(text), "error", err)
		return nil, toHTTPError(err)
	}
	return audio, nil
}

func (h *Handler) record(ctx context.Context, conv usage.Conversion) {
	if h.usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageRecordTimeout)
	defer cancel()
	if err := h.usage.Record(ctx, conv); err != nil {
		h.logger.Warn("failed to record usage", "format", conv.Format, "error", err)
	}
}

func invalidFormat(format string) *echo.HTTPError {
	return shared.NewAPIError("invalid_format", fmt.Sprintf("Unsupported output format %q", format)).
		WithDetails(map[string][]string{"supported": synthesis.Formats()}).
		ToHTTP(http.StatusBadRequest)
}

func toHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, synthesis.ErrInvalidFormat):
		return shared.BadRequest("invalid_format", err.Error())
	case errors.Is(err, synthesis.ErrTimeout):
		return shared.GatewayTimeout("synthesis_timeout", "Speech synthesis timed out")
	case errors.Is(err, synthesis.ErrConnectionClosed):
		return shared.BadGateway("backend_closed", err.Error())
	case errors.Is(err, synthesis.ErrConnection):
		return shared.BadGateway("backend_unavailable", "Speech backend unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return shared.GatewayTimeout("synthesis_timeout", "Speech synthesis timed out")
	default:
		return shared.InternalError("synthesis_failed", "Speech synthesis failed")
	}
}
