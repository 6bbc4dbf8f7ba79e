package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Shadan-Jamal/uplift-messaging/internal/auth"
	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
	"github.com/Shadan-Jamal/uplift-messaging/internal/metrics"
	"github.com/Shadan-Jamal/uplift-messaging/internal/presence"
	"github.com/Shadan-Jamal/uplift-messaging/internal/readreceipt"
	"github.com/Shadan-Jamal/uplift-messaging/internal/store"
	hubws "github.com/Shadan-Jamal/uplift-messaging/internal/ws"
)

const viewerKey = "viewer"

// Server is the request/response surface next to the websocket channel:
// conversation fetches, unread counts, bulk read receipts, roster and
// presence reads.
type Server struct {
	app       *fiber.App
	log       *zap.SugaredLogger
	validator *auth.Validator
	store     store.ConversationStore
	registry  *presence.Registry
	tracker   *readreceipt.Tracker
	hub       *hubws.Hub
}

func NewServer(log *zap.SugaredLogger, validator *auth.Validator, st store.ConversationStore, registry *presence.Registry, tracker *readreceipt.Tracker, hub *hubws.Hub) *Server {
	s := &Server{
		app:       fiber.New(fiber.Config{DisableStartupMessage: true}),
		log:       log,
		validator: validator,
		store:     st,
		registry:  registry,
		tracker:   tracker,
		hub:       hub,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	app := s.app

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Get("/ws", s.upgradeWS, websocket.New(s.handleWS))

	app.Get("/presence/:role", s.handlePresence)

	authed := app.Group("/", s.requireViewer)
	authed.Get("/conversations/:peer/messages", s.handleListMessages)
	authed.Get("/conversations/:peer/unread", s.handleUnread)
	authed.Post("/conversations/:peer/read", s.handleMarkRead)
	authed.Get("/roster", s.handleRoster)
	authed.Get("/students/:id/display", s.handleStudentDisplay)
}

// requireViewer resolves the caller's address from the bearer token and
// stashes it for handlers.
func (s *Server) requireViewer(c *fiber.Ctx) error {
	token, err := auth.ParseBearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	viewer, err := s.validator.SessionAddress(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	c.Locals(viewerKey, viewer)
	return c.Next()
}

func (s *Server) viewer(c *fiber.Ctx) identity.Address {
	viewer, _ := c.Locals(viewerKey).(identity.Address)
	return viewer
}

// peerOf resolves the :peer path param to the counterpart address of the
// viewer.
func (s *Server) peerOf(c *fiber.Ctx, viewer identity.Address) (identity.Address, error) {
	return identity.ForRole(viewer.Role().Counterpart(), c.Params("peer"))
}

func (s *Server) upgradeWS(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// handleWS authenticates the channel from the token query param and hands
// the connection to the gateway hub.
func (s *Server) handleWS(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		_ = conn.Close()
		return
	}
	addr, err := s.validator.SessionAddress(token)
	if err != nil {
		s.log.Warnw("ws session rejected", "err", err)
		_ = conn.Close()
		return
	}
	s.hub.HandleConn(conn, addr)
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	viewer := s.viewer(c)
	peer, err := s.peerOf(c, viewer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid peer address"})
	}
	pair, err := store.PairFor(viewer, peer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	msgs, err := s.store.ListMessages(c.Context(), pair)
	if err != nil {
		s.log.Errorw("list messages", "conversation", pair.Key(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (s *Server) handleUnread(c *fiber.Ctx) error {
	viewer := s.viewer(c)
	peer, err := s.peerOf(c, viewer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid peer address"})
	}
	n, err := s.tracker.Unread(c.Context(), viewer, peer)
	if err != nil {
		s.log.Errorw("unread count", "viewer", viewer.String(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"unread": n})
}

func (s *Server) handleMarkRead(c *fiber.Ctx) error {
	viewer := s.viewer(c)
	peer, err := s.peerOf(c, viewer)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid peer address"})
	}
	if err := s.tracker.MarkRead(c.Context(), viewer, peer); err != nil {
		s.log.Errorw("mark read", "viewer", viewer.String(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleRoster(c *fiber.Ctx) error {
	viewer := s.viewer(c)
	if viewer.Role() != identity.RoleCounselor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "counselor only"})
	}
	entries, err := s.store.Roster(c.Context(), viewer)
	if err != nil {
		s.log.Errorw("roster", "counselor", viewer.String(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(fiber.Map{"students": entries})
}

// handleStudentDisplay is the read-only accessor the moderation workflow
// uses to resolve a student's display address for escalation records.
func (s *Server) handleStudentDisplay(c *fiber.Ctx) error {
	addr, err := identity.ForRole(identity.RoleStudent, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid student id"})
	}
	return c.JSON(fiber.Map{"display": addr.Display()})
}

func (s *Server) handlePresence(c *fiber.Ctx) error {
	role := identity.Role(c.Params("role"))
	if !role.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown role"})
	}
	return c.JSON(fiber.Map{"role": role, "online": s.registry.Online(role)})
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }
func (s *Server) Shutdown() error          { return s.app.Shutdown() }
