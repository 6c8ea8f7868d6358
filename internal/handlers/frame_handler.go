package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/middleware"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/protocol"
	"github.com/joshua-takyi/invites/internal/realtime"
	"github.com/joshua-takyi/invites/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inline wish images travel base64 encoded inside a single message.
	maxMessageSize = 8 << 20
)

var metricsOpenFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "invites_bridge_open_frames",
	Help: "Template frames currently connected to the bridge",
}, []string{"role"})

// wsFrame writes outbound messages to one socket. Replies and pings come from
// different goroutines, so writes are serialised.
type wsFrame struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (f *wsFrame) Send(msg protocol.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteJSON(msg)
}

func (f *wsFrame) ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// closeWith sends a close frame and drops the connection, which ends the read loop.
func (f *wsFrame) closeWith(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = f.conn.Close()
}

func (f *wsFrame) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := f.ping(); err != nil {
				return
			}
		}
	}
}

// FrameBridge connects template frames to the message router over websockets.
// A frame's registration lives exactly as long as its socket.
type FrameBridge struct {
	registry  *protocol.Registry
	router    *protocol.Router
	resolver  *services.IDResolver
	rsvp      *services.RSVPService
	dashboard *services.DashboardService
	hub       *realtime.Hub
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

func NewFrameBridge(
	registry *protocol.Registry,
	router *protocol.Router,
	resolver *services.IDResolver,
	rsvp *services.RSVPService,
	dashboard *services.DashboardService,
	hub *realtime.Hub,
	logger *slog.Logger,
) *FrameBridge {
	return &FrameBridge{
		registry:  registry,
		router:    router,
		resolver:  resolver,
		rsvp:      rsvp,
		dashboard: dashboard,
		hub:       hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origins are checked per message by the router.
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// GuestSocket serves template frames embedded in a guest's invitation. The
// optional guest query parameter binds the frame to one guest of the event.
func (b *FrameBridge) GuestSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		eventID, err := b.resolver.Resolve(ctx, models.KindEvent, helpers.StringTrim(c.Param("eventId")))
		if err != nil {
			respondError(c, b.logger, err)
			return
		}

		binding := protocol.Binding{Role: protocol.RoleGuest}
		if publicGuest := helpers.StringTrim(c.Query("guest")); publicGuest != "" {
			guest, err := b.rsvp.FrameGuest(ctx, eventID, publicGuest)
			if err != nil {
				respondError(c, b.logger, err)
				return
			}
			binding.GuestID = guest.ID
			binding.DisplayName = guest.Name
		}

		b.serve(c, eventID, binding)
	}
}

// AdminSocket serves the moderation frame on a host's dashboard.
func (b *FrameBridge) AdminSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.Host(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse("unauthorized"))
			return
		}
		event, err := b.dashboard.EventForHost(c.Request.Context(), helpers.StringTrim(c.Param("eventId")), claims)
		if err != nil {
			respondError(c, b.logger, err)
			return
		}

		b.serve(c, event.ID, protocol.Binding{
			Role:        protocol.RoleAdmin,
			DisplayName: claims.Email,
			AccessToken: claims.AccessToken,
			ExpiresAt:   claims.TokenExpiry(),
			HostID:      claims.UserID,
		})
	}
}

func (b *FrameBridge) serve(c *gin.Context, eventID string, binding protocol.Binding) {
	origin := c.GetHeader("Origin")
	userAgent := c.Request.UserAgent()

	conn, err := b.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		b.logger.Warn("Frame upgrade failed", "event_id", eventID, "error", err)
		return
	}
	defer conn.Close()

	frame := &wsFrame{conn: conn}
	binding.Frame = frame
	binding.Observer = b.observe

	reg := b.registry.Acquire(eventID, binding)
	defer reg.Release()

	role := binding.Role.String()
	metricsOpenFrames.WithLabelValues(role).Inc()
	defer metricsOpenFrames.WithLabelValues(role).Dec()

	logger := b.logger.With("event_id", eventID, "registration", reg.ID(), "role", role)
	logger.Info("Frame connected", "origin", origin)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go frame.keepAlive(done)

	// Admin statements run with the host's token. Once it lapses the
	// dashboard has to reconnect through the refreshing auth middleware.
	if !binding.ExpiresAt.IsZero() {
		expiry := time.AfterFunc(time.Until(binding.ExpiresAt), func() {
			logger.Info("Frame token expired")
			frame.closeWith(websocket.ClosePolicyViolation, "session expired")
		})
		defer expiry.Stop()
	}

	ctx := c.Request.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Frame closed unexpectedly", "error", err)
			}
			break
		}
		b.router.Handle(ctx, protocol.Inbound{
			EventID:      eventID,
			Origin:       origin,
			UserAgent:    userAgent,
			Registration: reg,
			Raw:          raw,
		})
	}
	logger.Info("Frame disconnected")
}

// observe forwards refreshed lists to the event's dashboard streams.
func (b *FrameBridge) observe(eventID string, msg protocol.Outbound) {
	b.hub.Publish(eventID, realtime.Notice{Kind: realtime.NoticeFramePush, Data: msg})
}
