package speech

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eleven-am/tts-gateway/internal/shared"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/labstack/echo/v4"
)

const (
	defaultLegacyName = "豆包TTS"
	maxLegacyItems    = 32
)

type LegacyItem struct {
	Text        string `json:"text"`
	VoiceFormat string `json:"voiceFormat"`
	Name        string `json:"name"`
}

type LegacyRequest struct {
	TTSData []LegacyItem `json:"ttsdata"`
}

type LegacyResult struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	AudioData   string `json:"audioData"`
}

// HandleLegacy serves GET /tts?data=<base64 JSON>. Items are converted one
// after another and returned together; the first failure aborts the batch.
// @Summary      Batch speech (legacy)
// @Description  Accepts a base64 encoded JSON document {"ttsdata":[{"text","voiceFormat","name"}]} in the data query parameter and returns every item's audio as base64.
// @Tags         audio
// @Produce      json
// @Param        data query string true "Base64 encoded ttsdata document"
// @Success      200 {array} LegacyResult "Converted items in request order"
// @Failure      400 {object} shared.APIError "Invalid data, item text or format"
// @Failure      429 {object} shared.APIError "Rate limit exceeded"
// @Failure      502 {object} shared.APIError "Backend unavailable or connection closed"
// @Failure      504 {object} shared.APIError "Synthesis timed out"
// @Router       /v1/tts [get]
func (h *Handler) HandleLegacy(c echo.Context) error {
	req, err := DecodeLegacy(c.QueryParam("data"))
	if err != nil {
		return shared.BadRequest("invalid_data", err.Error())
	}
	if len(req.TTSData) > maxLegacyItems {
		return shared.BadRequest("too_many_items", "Too many ttsdata items")
	}

	ctx := c.Request().Context()
	results := make([]LegacyResult, 0, len(req.TTSData))
	for _, item := range req.TTSData {
		text := unescape(item.Text)
		if text == "" {
			return shared.BadRequest("missing_text", "ttsdata item text is required")
		}
		if len(text) > h.maxInputLength {
			return shared.BadRequest("input_too_long", "ttsdata item text is too long")
		}
		format := item.VoiceFormat
		if format == "" {
			format = defaultFormat
		}
		contentType, ok := synthesis.ContentType(format)
		if !ok {
			return invalidFormat(format)
		}
		name := unescape(item.Name)
		if name == "" {
			name = defaultLegacyName
		}

		audio, err := h.convert(ctx, text, format)
		if err != nil {
			return err
		}

		results = append(results, LegacyResult{
			ID:          time.Now().UnixMilli(),
			Name:        name,
			ContentType: contentType,
			AudioData:   base64.StdEncoding.EncodeToString(audio),
		})
	}

	return c.JSON(http.StatusOK, results)
}

// DecodeLegacy parses the data parameter of the legacy endpoint. Both the
// standard and URL-safe alphabets are accepted, with or without padding.
func DecodeLegacy(data string) (*LegacyRequest, error) {
	data = strings.TrimSpace(unescape(data))
	if data == "" {
		return nil, errInvalidLegacy("missing data parameter")
	}

	raw, err := decodeBase64(data)
	if err != nil {
		return nil, errInvalidLegacy("data is not valid base64")
	}

	var req LegacyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errInvalidLegacy("data is not valid JSON")
	}
	if req.TTSData == nil {
		return nil, errInvalidLegacy("ttsdata must be an array")
	}
	return &req, nil
}

type legacyError string

func (e legacyError) Error() string { return "invalid ttsdata parameter: " + string(e) }

func errInvalidLegacy(msg string) error { return legacyError(msg) }

func decodeBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// unescape undoes percent-encoding without turning '+' into a space.
func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
