// Package server exposes the inbound webhook endpoint. It authenticates
// deliveries with the shared HMAC secret, filters the event kinds the
// pipeline handles, deduplicates delivery GUIDs, and enqueues a unit of
// work. The response is always immediate; evaluation happens on the worker
// pool.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/clawarden/clawarden-go/internal/audit"
	"github.com/clawarden/clawarden-go/internal/deliveries"
	"github.com/clawarden/clawarden-go/internal/models"
	"github.com/clawarden/clawarden-go/internal/queue"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"
)

// Server is the webhook HTTP server.
type Server struct {
	app    *fiber.App
	queue  queue.Queue
	dedup  *deliveries.Store
	audit  *audit.Log
	secret string
	logger *logrus.Logger
}

// New builds the server. dedup and auditLog may be nil.
func New(secret string, q queue.Queue, dedup *deliveries.Store, auditLog *audit.Log, logger *logrus.Logger) *Server {
	s := &Server{
		queue:  q,
		dedup:  dedup,
		audit:  auditLog,
		secret: secret,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())

	app.Get("/healthz", s.handleHealth)
	app.Post("/webhook", s.handleWebhook)

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleWebhook(c *fiber.Ctx) error {
	deliveryID := c.Get(headerDelivery)
	eventKind := c.Get(headerEvent)
	body := c.Body()

	if !s.validSignature(c.Get(headerSignature), body) {
		if s.audit != nil {
			s.audit.RejectedDelivery(deliveryID, "invalid signature")
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	kind := models.EventKind(eventKind)
	if kind != models.EventPush && kind != models.EventPullRequest {
		// Terminal no-op for everything the pipeline does not evaluate.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ignored"})
	}

	if s.dedup != nil {
		dup, err := s.dedup.Seen(deliveryID)
		if err != nil {
			s.logger.WithError(err).Warn("delivery dedup unavailable, proceeding")
		} else if dup {
			if s.audit != nil {
				s.audit.DuplicateDelivery(deliveryID, eventKind)
			}
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "duplicate"})
		}
	}

	// The body is copied out of fiber's buffer before it is recycled.
	payload := make([]byte, len(body))
	copy(payload, body)

	job := queue.NewJob(deliveryID, kind, payload)
	if err := s.queue.Enqueue(c.Context(), job); err != nil {
		s.logger.WithError(err).WithField("delivery_id", deliveryID).Error("could not enqueue delivery")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queue unavailable"})
	}

	// Marked only after the hand-off: a shed delivery must stay unseen so
	// the forge's redelivery is processed instead of dropped as a duplicate.
	if s.dedup != nil {
		if _, err := s.dedup.MarkSeen(deliveryID); err != nil {
			s.logger.WithError(err).Warn("could not record delivery GUID")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"delivery_id": deliveryID,
		"event_kind":  eventKind,
		"unit_id":     job.ID,
	}).Debug("delivery enqueued")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued", "unit_id": job.ID})
}

// validSignature checks the X-Hub-Signature-256 HMAC. An empty configured
// secret disables validation (local development only).
func (s *Server) validSignature(header string, body []byte) bool {
	if s.secret == "" {
		return true
	}

	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}
