// Package mockgw is a deterministic stand-in for the messaging gateway,
// used for local runs and end-to-end tests of the dispatch client.
package mockgw

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Config tunes the fake gateway.
type Config struct {
	StartConnected bool
	PairDelay      time.Duration // How long a QR code stays pending before pairing succeeds
	Latency        time.Duration // Added to every send and check call
	Logger         *slog.Logger
}

// Gateway holds the fake session state.
type Gateway struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu        sync.Mutex
	connected bool
	qr        string
	pairAt    time.Time
}

// New creates a fake gateway.
func New(cfg Config) *Gateway {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{cfg: cfg, log: log, now: time.Now, connected: cfg.StartConnected}
}

// App builds the fiber application serving the gateway API.
func (g *Gateway) App() *fiber.App {
	app := fiber.New(fiber.Config{AppName: "mock-wa-gateway", DisableStartupMessage: true})
	api := app.Group("/api/whatsapp")
	api.Get("/status", g.status)
	api.Get("/qr", g.pairingCode)
	api.Post("/disconnect", g.disconnect)
	api.Post("/send", g.send)
	api.Post("/check", g.check)
	return app
}

func (g *Gateway) isConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.connected && g.qr != "" && !g.now().Before(g.pairAt) {
		g.connected = true
		g.qr = ""
		g.log.Info("mock gateway paired")
	}
	return g.connected
}

func (g *Gateway) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "connected": g.isConnected()})
}

func (g *Gateway) pairingCode(c *fiber.Ctx) error {
	if g.isConnected() {
		return c.JSON(fiber.Map{"success": true, "qr": ""})
	}
	g.mu.Lock()
	if g.qr == "" {
		g.qr = "2@" + uuid.NewString()
		g.pairAt = g.now().Add(g.cfg.PairDelay)
	}
	qr, expires := g.qr, g.pairAt.Sub(g.now())
	g.mu.Unlock()
	return c.JSON(fiber.Map{"success": true, "qr": qr, "expiresIn": max(expires.Milliseconds(), 0)})
}

func (g *Gateway) disconnect(c *fiber.Ctx) error {
	g.mu.Lock()
	g.connected = false
	g.qr = ""
	g.mu.Unlock()
	g.log.Info("mock gateway disconnected")
	return c.JSON(fiber.Map{"success": true})
}

type batchBody struct {
	Numbers []string `json:"numbers"`
	Message string   `json:"message"`
}

// readBatch parses a batch body. When ok is false the error response has
// already been written and err is the result of writing it.
func (g *Gateway) readBatch(c *fiber.Ctx) (body batchBody, ok bool, err error) {
	if err := c.BodyParser(&body); err != nil {
		return body, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid body"})
	}
	if !g.isConnected() {
		return body, false, c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "error": "WhatsApp client not ready"})
	}
	if g.cfg.Latency > 0 {
		select {
		case <-time.After(g.cfg.Latency):
		case <-c.Context().Done():
		}
	}
	return body, true, nil
}

func (g *Gateway) send(c *fiber.Ctx) error {
	body, ok, err := g.readBatch(c)
	if !ok {
		return err
	}
	if strings.TrimSpace(body.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "message is required"})
	}

	results := make([]fiber.Map, 0, len(body.Numbers))
	sent := 0
	ts := g.now().Format(time.TimeOnly)
	for _, n := range body.Numbers {
		if Reachable(n) {
			sent++
			results = append(results, fiber.Map{"number": n, "status": "sent", "timestamp": ts})
			continue
		}
		results = append(results, fiber.Map{"number": n, "status": "failed", "timestamp": ts, "error": "number not on WhatsApp"})
	}
	g.log.Info("mock gateway send", "numbers", len(body.Numbers), "sent", sent)
	return c.JSON(fiber.Map{
		"success":     true,
		"totalSent":   sent,
		"totalFailed": len(body.Numbers) - sent,
		"results":     results,
	})
}

func (g *Gateway) check(c *fiber.Ctx) error {
	body, ok, err := g.readBatch(c)
	if !ok {
		return err
	}
	results := make([]fiber.Map, 0, len(body.Numbers))
	for _, n := range body.Numbers {
		digits := strings.TrimPrefix(n, "+")
		results = append(results, fiber.Map{
			"number":          n,
			"formattedNumber": digits + "@c.us",
			"isOnWhatsApp":    Reachable(n),
		})
	}
	return c.JSON(fiber.Map{"success": true, "results": results})
}

// Reachable is the fake platform's membership rule: numbers ending in an
// even digit are registered.
func Reachable(number string) bool {
	if number == "" {
		return false
	}
	last := number[len(number)-1]
	return last >= '0' && last <= '9' && (last-'0')%2 == 0
}
