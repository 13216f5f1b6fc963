package handlers

import (
	"context"
	"net/http"
	"time"

	"coachhub/internal/common"
	"coachhub/internal/metrics"
	"coachhub/internal/realtime"
	"coachhub/internal/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxCommandSize = 64 << 10

// SessionHandlers upgrades authenticated clients to a websocket carrying one ClientSession.
type SessionHandlers struct {
	deps        session.Dependencies
	opts        session.Options
	devOverride bool
	sessionTTL  time.Duration
	upgrader    websocket.Upgrader
}

type SessionConfig struct {
	CommandsPerSecond float64
	CommandBurst      int
	// DevOverride honours ?tenant= on the upgrade request. Development only.
	DevOverride bool
	SessionTTL  time.Duration
}

func NewSessionHandlers(deps session.Dependencies, cfg SessionConfig) *SessionHandlers {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &SessionHandlers{
		deps: deps,
		opts: session.Options{
			CommandsPerSecond: cfg.CommandsPerSecond,
			CommandBurst:      cfg.CommandBurst,
		},
		devOverride: cfg.DevOverride,
		sessionTTL:  cfg.SessionTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Tenants serve from arbitrary custom domains; the bearer token is the gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect serves GET /v1/session/ws until the client disconnects.
func (h *SessionHandlers) Connect(c echo.Context) error {
	profile, ok := common.GetProfileFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	token, _ := common.GetSessionIDFromContext(c.Request().Context())
	log := h.deps.Log.With(zap.String("user_id", profile.ID.String()))

	// A session key already bound to someone else means the token id was reused.
	if token != "" && h.deps.Cache != nil {
		owner, err := h.deps.Cache.GetSession(c.Request().Context(), token)
		if err != nil {
			log.Warn("session lookup failed", zap.Error(err))
		} else if owner != uuid.Nil && owner != profile.ID {
			return common.SendUnauthorizedError(c)
		}
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the response.
		log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	ws.SetReadLimit(maxCommandSize)

	conn := realtime.NewConnection(ws)
	conn.Start()

	opts := h.opts
	opts.Hostname = c.Request().Host
	if h.devOverride {
		opts.DevOverride = c.QueryParam("tenant")
	}
	sess := session.NewClientSession(h.deps, conn, opts)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	h.deps.Metrics.OpenSessions.Inc()
	defer func() {
		cancel()
		sess.Close()
		conn.Close(websocket.CloseNormalClosure, "session closed")
		h.deps.Metrics.OpenSessions.Dec()
	}()

	if token != "" && h.deps.Cache != nil {
		if err := h.deps.Cache.SetSession(ctx, token, profile.ID, h.sessionTTL); err != nil {
			log.Warn("persisting session token failed", zap.Error(err))
		}
	}
	if err := sess.SignIn(ctx, profile, token); err != nil {
		log.Warn("session sign-in incomplete", zap.Error(err))
	}

	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err = conn.ReadLoop(func(payload []byte) {
		sess.HandleCommand(ctx, payload)
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug("websocket read ended", zap.Error(err))
	}
	return nil
}
