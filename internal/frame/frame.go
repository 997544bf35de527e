// Package frame implements the header-block framing spoken on the synthesis
// backend's websocket. Every message starts with CRLF separated Key:Value
// lines. Text messages separate the header block from their body with a blank
// line; binary messages end the header block with the audio sentinel line and
// carry raw payload bytes right after it.
package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	HeaderRequestID   = "X-RequestId"
	HeaderTimestamp   = "X-Timestamp"
	HeaderContentType = "Content-Type"
	HeaderPath        = "Path"

	PathConfig    = "config"
	PathText      = "text"
	PathAudio     = "audio"
	PathTurnStart = "turn.start"
	PathTurnEnd   = "turn.end"

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

var (
	ErrMalformed = errors.New("malformed frame")

	crlf          = []byte("\r\n")
	blankLine     = []byte("\r\n\r\n")
	audioSentinel = []byte(HeaderPath + ":" + PathAudio + "\r\n")
)

type Field struct {
	Key   string
	Value string
}

// Header keeps fields in arrival order. Lookups are case-sensitive.
type Header struct {
	fields []Field
}

func (h *Header) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

func (h *Header) Lookup(key string) (string, bool) {
	for _, f := range h.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (h *Header) Set(key, value string) {
	for i := range h.fields {
		if h.fields[i].Key == key {
			h.fields[i].Value = value
			return
		}
	}
	h.fields = append(h.fields, Field{Key: key, Value: value})
}

func (h *Header) Len() int {
	return len(h.fields)
}

func (h *Header) encode(buf *bytes.Buffer) {
	for _, f := range h.fields {
		buf.WriteString(f.Key)
		buf.WriteByte(':')
		buf.WriteString(f.Value)
		buf.Write(crlf)
	}
}

type Frame struct {
	Header Header
	Body   []byte
}

func (f *Frame) RequestID() string {
	return f.Header.Get(HeaderRequestID)
}

func (f *Frame) Path() string {
	return f.Header.Get(HeaderPath)
}

// Encode writes the header block, the blank separator line and the body.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(64*f.Header.Len() + len(f.Body) + 2)
	f.Header.encode(&buf)
	buf.Write(crlf)
	buf.Write(f.Body)
	return buf.Bytes()
}

// ParseHeader reads Key:Value lines. Lines without a colon are skipped and a
// later duplicate key overrides an earlier one.
func ParseHeader(block []byte) Header {
	var h Header
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimLeftFunc(key, unprintable)
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		h.Set(key, strings.TrimSpace(value))
	}
	return h
}

func unprintable(r rune) bool {
	return r == utf8.RuneError || !unicode.IsPrint(r)
}

func ParseText(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrMalformed
	}
	head, body, found := bytes.Cut(data, blankLine)
	f := Frame{Header: ParseHeader(head)}
	if found {
		f.Body = body
	}
	if f.Header.Len() == 0 {
		return Frame{}, ErrMalformed
	}
	return f, nil
}

func ParseBinary(data []byte) (Frame, error) {
	idx := bytes.Index(data, audioSentinel)
	if idx <= 0 {
		return Frame{}, ErrMalformed
	}
	end := idx + len(audioSentinel)
	start := 0
	if end >= 2 && int(binary.BigEndian.Uint16(data[:2])) == end-2 {
		start = 2
	}
	return Frame{
		Header: ParseHeader(data[start:end]),
		Body:   data[end:],
	}, nil
}

type audioConfig struct {
	Context struct {
		Synthesis struct {
			Audio struct {
				OutputFormat string `json:"outputFormat"`
			} `json:"audio"`
		} `json:"synthesis"`
	} `json:"context"`
}

func ConfigFrame(format string, now time.Time) ([]byte, error) {
	var cfg audioConfig
	cfg.Context.Synthesis.Audio.OutputFormat = format
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	f := Frame{Body: body}
	f.Header.Set(HeaderTimestamp, Timestamp(now))
	f.Header.Set(HeaderContentType, "application/json")
	f.Header.Set(HeaderPath, PathConfig)
	return f.Encode(), nil
}

func TextFrame(requestID, text string, now time.Time) []byte {
	f := Frame{Body: []byte(text)}
	f.Header.Set(HeaderTimestamp, Timestamp(now))
	f.Header.Set(HeaderRequestID, requestID)
	f.Header.Set(HeaderContentType, "text/plain")
	f.Header.Set(HeaderPath, PathText)
	return f.Encode()
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
