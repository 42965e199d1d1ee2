package transport

import (
	"errors"
	"log/slog"

	"golang-wa-broadcast/internal/app"
	"golang-wa-broadcast/internal/countries"
	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/ports"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler holds all HTTP handlers for the operator API.
type Handler struct {
	svc       *app.DispatchService
	poller    *app.StatusPoller
	session   ports.SessionManager
	countries *countries.Table
	log       *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(
	svc *app.DispatchService,
	poller *app.StatusPoller,
	session ports.SessionManager,
	table *countries.Table,
	log *slog.Logger,
) *Handler {
	return &Handler{svc: svc, poller: poller, session: session, countries: table, log: log}
}

// Register mounts all routes onto the given router. startGuards run in
// front of the routes that start operations.
func (h *Handler) Register(router fiber.Router, startGuards ...fiber.Handler) {
	guards := startGuards[:len(startGuards):len(startGuards)]
	router.Post("/operations/send", append(guards, h.StartSend)...)
	router.Post("/operations/verify", append(guards, h.StartVerify)...)
	router.Get("/operations/current", h.CurrentOperation)
	router.Get("/operations/:id", h.GetOperation)

	router.Get("/connectivity", h.Connectivity)
	router.Post("/connectivity/check", h.CheckConnectivity)

	router.Get("/gateway/qr", h.PairingCode)
	router.Post("/gateway/disconnect", h.Disconnect)

	router.Get("/countries", h.Countries)
}

// ── Operations ────────────────────────────────────────────────────────────────

type sendRequest struct {
	Country string   `json:"country"`
	Numbers []string `json:"numbers"`
	Cells   []string `json:"cells"`
	Message string   `json:"message"`
}

type verifyRequest struct {
	Country string   `json:"country"`
	Numbers []string `json:"numbers"`
	Cells   []string `json:"cells"`
	Legacy  bool     `json:"legacy"`
}

type startResponse struct {
	OperationID  string      `json:"operation_id"`
	Mode         domain.Mode `json:"mode"`
	TotalPlanned int         `json:"total_planned"`
	Recipients   []string    `json:"recipients"`
}

// StartSend starts delivering one message to every recipient.
//
// POST /api/operations/send
// Body: { "country": "IN", "numbers": ["..."], "cells": ["..."], "message": "..." }
func (h *Handler) StartSend(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	return h.start(c, app.OperationRequest{
		Mode:    domain.ModeSend,
		Country: req.Country,
		Numbers: req.Numbers,
		Cells:   req.Cells,
		Message: req.Message,
	})
}

// StartVerify starts a reachability check.
//
// POST /api/operations/verify
// Body: { "country": "IN", "numbers": ["..."], "cells": ["..."], "legacy": false }
func (h *Handler) StartVerify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	mode := domain.ModeVerify
	if req.Legacy {
		mode = domain.ModeLegacyVerify
	}
	return h.start(c, app.OperationRequest{
		Mode:    mode,
		Country: req.Country,
		Numbers: req.Numbers,
		Cells:   req.Cells,
	})
}

func (h *Handler) start(c *fiber.Ctx, req app.OperationRequest) error {
	op, err := h.svc.Start(c.UserContext(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(startResponse{
		OperationID:  op.ID.String(),
		Mode:         op.Mode,
		TotalPlanned: len(op.Recipients),
		Recipients:   op.Recipients,
	})
}

// CurrentOperation returns the latest operation's snapshot.
//
// GET /api/operations/current
func (h *Handler) CurrentOperation(c *fiber.Ctx) error {
	op, err := h.svc.Current()
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(op.Snapshot())
}

// GetOperation returns one operation's snapshot.
//
// GET /api/operations/:id
func (h *Handler) GetOperation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
	}
	op, err := h.svc.Operation(id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(op.Snapshot())
}

// ── Gateway session ───────────────────────────────────────────────────────────

// Connectivity reports the last polled gateway state.
//
// GET /api/connectivity
func (h *Handler) Connectivity(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": h.poller.State()})
}

// CheckConnectivity re-polls the gateway immediately.
//
// POST /api/connectivity/check
func (h *Handler) CheckConnectivity(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": h.poller.Poll(c.UserContext())})
}

// PairingCode proxies the gateway's pending QR code.
//
// GET /api/gateway/qr
func (h *Handler) PairingCode(c *fiber.Ctx) error {
	qr, err := h.session.QR(c.UserContext())
	if err != nil {
		h.log.Error("gateway qr", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway unavailable"})
	}
	return c.JSON(fiber.Map{
		"pending":       qr.Code != "",
		"qr":            qr.Code,
		"expires_in_ms": qr.ExpiresIn.Milliseconds(),
	})
}

// Disconnect drops the gateway's session and re-polls connectivity.
//
// POST /api/gateway/disconnect
func (h *Handler) Disconnect(c *fiber.Ctx) error {
	if err := h.session.Disconnect(c.UserContext()); err != nil {
		h.log.Error("gateway disconnect", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "gateway unavailable"})
	}
	return c.JSON(fiber.Map{"success": true, "state": h.poller.Poll(c.UserContext())})
}

// Countries lists the selectable countries, wildcard first.
//
// GET /api/countries
func (h *Handler) Countries(c *fiber.Ctx) error {
	return c.JSON(h.countries.All())
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayDisconnected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "gateway is disconnected, re-check connectivity first"})
	case errors.Is(err, domain.ErrOperationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "operation not found"})
	default:
		h.log.Error("operator api", "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
