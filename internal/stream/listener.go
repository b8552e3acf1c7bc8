// Package stream listens to the live-search WebSocket and turns each frame into an event.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocket timeouts
const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadTimeout      = 90 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 30 * time.Second
	wsReconnectMin     = 1 * time.Second
	wsReconnectMax     = 30 * time.Second
	wsReadLimit        = 4 << 20
)

// Config holds live-search connection settings.
type Config struct {
	URL       string
	Origin    string
	UserAgent string

	PingInterval time.Duration // 0 = 30s
	ReadTimeout  time.Duration // 0 = 90s
	ReconnectMin time.Duration // 0 = 1s
	ReconnectMax time.Duration // 0 = 30s
}

// CookieSource provides the Cookie header for each new connection.
type CookieSource interface {
	Get() models.Credential
}

// Handler receives every parsed frame.
type Handler func(ctx context.Context, ev models.Event)

// Listener keeps one live-search connection open, reconnecting with backoff.
type Listener struct {
	config  Config
	cookies CookieSource
	handler Handler
	logger  *logrus.Logger
	mu      sync.Mutex

	connected bool
	frames    int
}

// NewListener creates a listener. Run starts it.
func NewListener(config Config, cookies CookieSource, handler Handler, logger *logrus.Logger) *Listener {
	if config.PingInterval == 0 {
		config.PingInterval = wsPingInterval
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = wsReadTimeout
	}
	if config.ReconnectMin == 0 {
		config.ReconnectMin = wsReconnectMin
	}
	if config.ReconnectMax == 0 {
		config.ReconnectMax = wsReconnectMax
	}
	return &Listener{
		config:  config,
		cookies: cookies,
		handler: handler,
		logger:  logger,
	}
}

// Run connects and reconnects until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	reconnectDelay := l.config.ReconnectMin

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connectedAt := time.Now()
		err := l.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		// a connection that lived a while resets the backoff
		if time.Since(connectedAt) > l.config.ReconnectMax {
			reconnectDelay = l.config.ReconnectMin
		}

		l.logger.WithFields(logrus.Fields{
			"error": err,
			"delay": reconnectDelay,
		}).Warn("Live search disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}

		reconnectDelay *= 2
		if reconnectDelay > l.config.ReconnectMax {
			reconnectDelay = l.config.ReconnectMax
		}
	}
}

// Connected reports whether a connection is currently open.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Frames returns the number of frames received so far.
func (l *Listener) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

func (l *Listener) headers() http.Header {
	h := http.Header{}
	if cookie := l.cookies.Get().SessionCookie; cookie != "" {
		h.Set("Cookie", cookie)
	}
	if l.config.Origin != "" {
		h.Set("Origin", l.config.Origin)
	}
	if l.config.UserAgent != "" {
		h.Set("User-Agent", l.config.UserAgent)
	}
	return h
}

// connect runs a single connection until it fails.
func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	conn, resp, err := dialer.DialContext(ctx, l.config.URL, l.headers())
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	l.setConnected(true)
	defer l.setConnected(false)
	l.logger.WithField("url", l.config.URL).Info("Live search connected")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))
	})

	return l.readLoop(ctx, conn)
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	l.mu.Unlock()
}

// readLoop handles reading frames and sending pings.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) error {
	messages := make(chan []byte, 100)
	readErr := make(chan error, 1)

	go func() {
		defer close(messages)
		for {
			conn.SetReadDeadline(time.Now().Add(l.config.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				select {
				case readErr <- err:
				default:
				}
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(l.config.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteTimeout))
			return nil

		case msg, ok := <-messages:
			// the reader closes messages only after queueing its error
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("read error: %w", err)
				default:
					return errors.New("connection closed")
				}
			}
			l.dispatch(ctx, msg)

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, msg []byte) {
	l.mu.Lock()
	l.frames++
	l.mu.Unlock()

	payload, err := jsonvalue.Parse(msg)
	if err != nil {
		l.logger.WithField("error", err).Debug("Skipping non-JSON frame")
		return
	}
	l.handler(ctx, models.Event{
		Source:     l.config.URL,
		Payload:    payload,
		ReceivedAt: time.Now(),
	})
}
