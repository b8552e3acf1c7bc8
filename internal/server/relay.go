package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	relayTradeData = "TRADE_DATA"
	relayCookies   = "COOKIES"
	relayAck       = "ACK"
	relayError     = "ERROR"

	relayReadLimit = 4 << 20
)

// Only browser extensions and non-browser clients may connect. Web pages cannot
// forge the Origin header, so any http(s) origin is refused.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     extensionOrigin,
}

var extensionSchemes = []string{"chrome-extension://", "moz-extension://"}

func extensionOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	return false
}

type relayCookie struct {
	Value string `json:"value"`
}

// relayMessage is what the browser extension pushes.
type relayMessage struct {
	Type    string                 `json:"type"`
	URL     string                 `json:"url"`
	Data    json.RawMessage        `json:"data"`
	Cookies map[string]relayCookie `json:"cookies"`
}

type relayReply struct {
	Type     string `json:"type"`
	Decision string `json:"decision,omitempty"`
	Session  bool   `json:"session,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Relay accepts trade data and cookies forwarded by the browser extension.
func (h *Handler) Relay(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.cfg.Logger.WithError(err).Warn("relay upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(relayReadLimit)

	logger := h.cfg.Logger.WithField("remote", c.Request.RemoteAddr)
	logger.Info("Extension connected")
	defer logger.Info("Extension disconnected")

	ctx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Debug("relay read ended")
			}
			return
		}

		reply := h.handleRelayMessage(ctx, raw, logger)
		if err := conn.WriteJSON(reply); err != nil {
			logger.WithError(err).Debug("relay write failed")
			return
		}
	}
}

func (h *Handler) handleRelayMessage(ctx context.Context, raw []byte, logger *logrus.Entry) relayReply {
	var msg relayMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return relayReply{Type: relayError, Error: "invalid message: " + err.Error()}
	}

	switch msg.Type {
	case relayTradeData:
		if len(msg.Data) == 0 {
			return relayReply{Type: relayError, Error: "data is required"}
		}
		payload, err := jsonvalue.Parse(msg.Data)
		if err != nil {
			return relayReply{Type: relayError, Error: err.Error()}
		}
		decision := h.cfg.Pipeline.HandleEvent(ctx, models.Event{
			Source:     msg.URL,
			Payload:    payload,
			ReceivedAt: time.Now(),
		})
		logger.WithFields(logrus.Fields{"url": msg.URL, "decision": decision.String()}).Debug("Relayed trade data")
		return relayReply{Type: relayAck, Decision: decision.String()}

	case relayCookies:
		session, ok := msg.Cookies["POESESSID"]
		if !ok || session.Value == "" {
			logger.Warn("POESESSID not found in relayed cookies")
			return relayReply{Type: relayError, Error: "POESESSID not found"}
		}
		h.cfg.Credentials.SetSession(session.Value, msg.Cookies["cf_clearance"].Value)
		logger.WithField("poesessid", failure.Mask(session.Value)).Info("Session cookie received from extension")
		return relayReply{Type: relayAck, Session: true}

	default:
		return relayReply{Type: relayError, Error: "unknown message type " + msg.Type}
	}
}
