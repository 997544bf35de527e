package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eleven-am/tts-gateway/internal/frame"
	"github.com/eleven-am/tts-gateway/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Manager owns the single websocket shared by all conversions. The
// connection is opened by the first Convert call and torn down when it sits
// idle, when the backend closes it, or when Close is called. The next Convert
// after a teardown dials again.
type Manager struct {
	cfg     Config
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string

	pending *PendingTable
	audio   *Assembler

	mu      sync.Mutex
	state   State
	sess    *session
	dial    *dialAttempt
	idle    *time.Timer
	idleSeq uint64
}

type dialAttempt struct {
	done chan struct{}
	sess *session
	err  error
}

func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Manager, error) {
	if cfg.Cookie == "" {
		return nil, ErrMissingCredential
	}
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	cfg = normalizeConfig(cfg)

	return &Manager{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger:  logger.With("component", "synthesis"),
		metrics: m,
		newID:   NewRequestID,
		pending: NewPendingTable(),
		audio:   NewAssembler(),
	}, nil
}

// NewRequestID returns 32 lowercase hex characters.
func NewRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Convert synthesizes text in the given output format and blocks until the
// backend finishes the turn, the request deadline passes, the connection goes
// away, or ctx is done.
func (m *Manager) Convert(ctx context.Context, text, format string) ([]byte, error) {
	if !ValidFormat(format) {
		m.metrics.Conversions.WithLabelValues("invalid", outcome(ErrInvalidFormat)).Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	start := time.Now()
	audio, err := m.convert(ctx, text, format)
	m.metrics.Conversions.WithLabelValues(format, outcome(err)).Inc()
	if err == nil {
		m.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	}
	return audio, err
}

func (m *Manager) convert(ctx context.Context, text, format string) ([]byte, error) {
	now := time.Now()
	configFrame, err := frame.ConfigFrame(format, now)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	sess, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}

	id := m.newID()
	p, err := m.pending.Register(id)
	if err != nil {
		return nil, err
	}
	m.metrics.PendingRequests.Inc()
	defer m.metrics.PendingRequests.Dec()

	logger := m.logger.With("request_id", id, "connection_id", sess.id)

	// A detach between acquire and Register ran RejectAll without this entry.
	if closeErr := m.closedWith(sess); closeErr != nil {
		m.fail(id, closeErr)
		logger.Debug("connection closed before submit", "code", closeErr.Code)
		r := <-p.Done()
		return r.Audio, r.Err
	}

	if err := sess.sendPair(configFrame, frame.TextFrame(id, text, now)); err != nil {
		if m.fail(id, fmt.Errorf("%w: send: %w", ErrConnection, err)) {
			logger.Error("failed to submit conversion", "error", err)
		}
		r := <-p.Done()
		return r.Audio, r.Err
	}
	logger.Debug("conversion submitted", "format", format, "text_length", len(text))

	timer := time.AfterFunc(m.cfg.RequestTimeout, func() {
		if m.fail(id, fmt.Errorf("%w after %s", ErrTimeout, m.cfg.RequestTimeout)) {
			logger.Warn("conversion timed out")
		}
	})
	defer timer.Stop()

	select {
	case r := <-p.Done():
		return r.Audio, r.Err
	case <-ctx.Done():
		m.fail(id, ctx.Err())
		r := <-p.Done()
		return r.Audio, r.Err
	}
}

// fail rejects id and drops its buffer. It reports false when the request
// had already completed.
func (m *Manager) fail(id string, err error) bool {
	if !m.pending.Reject(id, err) {
		return false
	}
	m.audio.Discard(id)
	m.metrics.ActiveBuffers.Set(float64(m.audio.Len()))
	return true
}

func (m *Manager) closedWith(s *session) *CloseError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.closeErr
}

// acquire returns the open session, dialing if needed. Callers arriving while
// a handshake is in flight wait for that same handshake. Every acquisition
// rearms the idle timer.
func (m *Manager) acquire(ctx context.Context) (*session, error) {
	m.mu.Lock()
	if m.sess != nil {
		s := m.sess
		m.armIdleLocked(s)
		m.mu.Unlock()
		return s, nil
	}
	d := m.dial
	if d == nil {
		d = &dialAttempt{done: make(chan struct{})}
		m.dial = d
		m.state = StateConnecting
		go m.connect(d)
	}
	m.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != d.sess {
		return nil, fmt.Errorf("%w: connection lost before use", ErrConnection)
	}
	m.armIdleLocked(d.sess)
	return d.sess, nil
}

func (m *Manager) connect(d *dialAttempt) {
	sess, err := m.handshake()

	m.mu.Lock()
	m.dial = nil
	if err != nil {
		m.state = StateDisconnected
		d.err = err
	} else {
		m.state = StateOpen
		m.sess = sess
		d.sess = sess
		m.metrics.ConnectionOpen.Set(1)
		go m.readLoop(sess)
	}
	m.mu.Unlock()

	close(d.done)
}

func (m *Manager) handshake() (*session, error) {
	connID := m.newID()

	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		m.metrics.Handshakes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: parse url: %w", ErrConnection, err)
	}
	q := u.Query()
	q.Set("connectionId", connID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Cookie", m.cfg.Cookie)
	header.Set("User-Agent", m.cfg.UserAgent)
	header.Set("Origin", m.cfg.Origin)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()

	m.logger.Info("connecting to synthesis backend", "connection_id", connID)
	conn, resp, err := m.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		m.metrics.Handshakes.WithLabelValues("error").Inc()
		m.logger.Error("synthesis backend handshake failed", "connection_id", connID, "error", err)
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake: %s: %w", ErrConnection, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: handshake: %w", ErrConnection, err)
	}

	m.metrics.Handshakes.WithLabelValues("ok").Inc()
	m.logger.Info("synthesis backend connected", "connection_id", connID)
	return newSession(connID, conn), nil
}

// readLoop handles inbound frames one at a time until the socket fails.
func (m *Manager) readLoop(s *session) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			code, reason, remote := closeDetails(err)
			cause := "error"
			if remote {
				cause = "remote"
			}
			m.mu.Lock()
			detached := m.detachLocked(s, code, reason, cause)
			m.mu.Unlock()
			if detached && cause == "error" {
				m.logger.Warn("synthesis backend connection lost", "connection_id", s.id, "error", err)
			}
			s.close(code, reason, false)
			return
		}
		if s.detached.Load() {
			continue
		}

		switch mt {
		case websocket.TextMessage:
			m.handleText(data)
		case websocket.BinaryMessage:
			m.handleBinary(data)
		}
	}
}

func (m *Manager) handleText(data []byte) {
	f, err := frame.ParseText(data)
	if err != nil {
		m.drop("malformed", "unparseable text frame")
		return
	}

	path := f.Path()
	if path != frame.PathTurnStart && path != frame.PathTurnEnd {
		return
	}
	id := f.RequestID()
	if id == "" {
		m.drop("unroutable", "control frame without request id")
		return
	}

	switch path {
	case frame.PathTurnStart:
		m.audio.Start(id)
		m.logger.Debug("turn started", "request_id", id)
	case frame.PathTurnEnd:
		audio, _ := m.audio.Finish(id)
		if m.pending.Resolve(id, audio) {
			m.logger.Debug("turn finished", "request_id", id, "bytes", len(audio))
		}
	}
	m.metrics.ActiveBuffers.Set(float64(m.audio.Len()))
}

func (m *Manager) handleBinary(data []byte) {
	f, err := frame.ParseBinary(data)
	if err != nil {
		m.drop("malformed", "binary frame without audio sentinel")
		return
	}
	id := f.RequestID()
	if id == "" {
		m.drop("unroutable", "audio frame without request id")
		return
	}
	if !m.audio.Append(id, f.Body) {
		m.metrics.DroppedChunks.Inc()
		m.logger.Debug("dropped audio chunk", "request_id", id, "bytes", len(f.Body))
	}
}

func (m *Manager) drop(reason, msg string) {
	m.metrics.DroppedFrames.WithLabelValues(reason).Inc()
	m.logger.Debug("dropped frame", "reason", reason, "detail", msg)
}

func (m *Manager) armIdleLocked(s *session) {
	m.idleSeq++
	seq := m.idleSeq
	if m.idle != nil {
		m.idle.Stop()
	}
	m.idle = time.AfterFunc(m.cfg.IdleTimeout, func() {
		m.idleExpired(s, seq)
	})
}

func (m *Manager) idleExpired(s *session, seq uint64) {
	m.mu.Lock()
	if m.sess != s || m.idleSeq != seq {
		m.mu.Unlock()
		return
	}
	m.detachLocked(s, websocket.CloseNormalClosure, "idle timeout", "idle")
	m.mu.Unlock()

	s.close(websocket.CloseNormalClosure, "idle timeout", true)
}

// detachLocked moves the manager to Disconnected and fails everything that
// was pending on s. It reports false if s is no longer the live session.
func (m *Manager) detachLocked(s *session, code int, reason, cause string) bool {
	if m.sess != s {
		return false
	}
	closeErr := &CloseError{Code: code, Reason: reason}
	s.closeErr = closeErr
	s.detached.Store(true)
	m.sess = nil
	m.state = StateDisconnected
	m.idleSeq++
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}

	rejected := m.pending.RejectAll(closeErr)
	m.audio.Reset()

	m.metrics.ConnectionOpen.Set(0)
	m.metrics.ActiveBuffers.Set(0)
	m.metrics.ConnectionClose.WithLabelValues(cause).Inc()
	m.logger.Info("synthesis backend connection closed",
		"connection_id", s.id,
		"code", code,
		"reason", reason,
		"cause", cause,
		"rejected", rejected)
	return true
}

// Close shuts the shared connection down gracefully. Pending conversions
// fail with ErrConnectionClosed. The manager stays usable.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.sess
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	m.detachLocked(s, websocket.CloseNormalClosure, "client shutdown", "shutdown")
	m.mu.Unlock()

	s.close(websocket.CloseNormalClosure, "client shutdown", true)
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	st := Stats{State: m.state}
	if m.sess != nil {
		st.ConnectionID = m.sess.id
	}
	m.mu.Unlock()

	st.Pending = m.pending.Len()
	st.Buffers = m.audio.Len()
	return st
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionClosed):
		return "connection_closed"
	case errors.Is(err, ErrConnection):
		return "connection_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
