package handler

import (
	"os"
	"time"

	"ai-paperchat-be/internal/pkg/logger"
	"ai-paperchat-be/internal/pkg/serverutils"
	internalWS "ai-paperchat-be/internal/websocket"
	"ai-paperchat-be/pkg/events"
	pktNats "ai-paperchat-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PushHandler owns the websocket endpoint clients use to receive paper
// lifecycle pushes, plus an operator broadcast endpoint.
type PushHandler struct {
	publisher *pktNats.Publisher
	hub       *internalWS.Hub
	logger    logger.ILogger
}

func NewPushHandler(pub *pktNats.Publisher, hub *internalWS.Hub, log logger.ILogger) *PushHandler {
	return &PushHandler{
		publisher: pub,
		hub:       hub,
		logger:    log,
	}
}

// ServeWs authenticates the websocket handshake and hands the connection to
// the hub. Browsers cannot set headers on websocket upgrades, so the token
// is accepted from the query string first, then from the Authorization
// header for non-browser clients.
func (h *PushHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	// Same secret the HTTP middleware verifies with.
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("PushHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("PushHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("PushHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// Broadcast publishes a system-wide announcement. It rides the same event
// bus as paper events with the wildcard user target, so every connected
// client on every instance receives it.
func (h *PushHandler) Broadcast(c *fiber.Ctx) error {
	type Request struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return err
	}
	if req.Title == "" || req.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title and message are required")
	}

	evt := events.BaseEvent{
		Type: "system_broadcast",
		Data: map[string]interface{}{
			"user_id": "*",
			"title":   req.Title,
			"message": req.Message,
		},
		OccurredAt: time.Now(),
	}

	if h.publisher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "event publisher not configured")
	}
	if err := h.publisher.Publish(c.UserContext(), evt); err != nil {
		return err
	}

	return c.JSON(serverutils.SuccessResponse[any]("Broadcast queued", nil))
}

func (h *PushHandler) RegisterRoutes(router fiber.Router) {
	push := router.Group("/push/v1")
	push.Use(serverutils.JwtMiddleware)
	push.Post("broadcast", h.Broadcast)

	// The handshake authenticates itself; see ServeWs.
	router.Get("/ws/v1/ingestion", h.ServeWs)
}
