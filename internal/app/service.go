package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/intake"
	"golang-wa-broadcast/internal/observability/metrics"
	"golang-wa-broadcast/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultHistory = 20
	publishTimeout = 5 * time.Second
)

// ModeConfig bounds one kind of operation.
type ModeConfig struct {
	MaxRecipients int
	BatchSize     int           // <= 0 sends the whole set in one request
	Timeout       time.Duration // Per-attempt deadline of a batch request
}

// Config tunes the dispatch service.
type Config struct {
	Send            ModeConfig
	Verify          ModeConfig
	LegacyVerify    ModeConfig
	BatchInterval   time.Duration // Minimum gap between batch starts; 0 disables pacing
	DefaultDialCode string
	History         int // Finished operations kept for lookup
}

// DefaultConfig returns the stock limits for every mode.
func DefaultConfig() Config {
	return Config{
		Send:            ModeConfig{MaxRecipients: 100, BatchSize: 0, Timeout: 30 * time.Second},
		Verify:          ModeConfig{MaxRecipients: 100, BatchSize: 20, Timeout: 300 * time.Second},
		LegacyVerify:    ModeConfig{MaxRecipients: 10, BatchSize: 0, Timeout: 30 * time.Second},
		DefaultDialCode: domain.DefaultDialCode,
		History:         defaultHistory,
	}
}

func (c Config) mode(m domain.Mode) ModeConfig {
	switch m {
	case domain.ModeVerify:
		return c.Verify
	case domain.ModeLegacyVerify:
		return c.LegacyVerify
	default:
		return c.Send
	}
}

// ConnectivityGate exposes the last known gateway state.
type ConnectivityGate interface {
	State() domain.ConnectivityState
}

// ProfileResolver turns a country code into a normalization profile.
type ProfileResolver interface {
	Profile(code string) (domain.CountryProfile, error)
}

// OperationRequest is the raw operator input for one operation.
type OperationRequest struct {
	Mode    domain.Mode
	Country string   // ISO code or "all"; ignored by legacy verify
	Numbers []string // Free-text tokens, each may hold comma separated numbers
	Cells   []string // Spreadsheet cells, pre-filtered before normalization
	Message string   // Send only
}

// DispatchService validates operations and runs them batch by batch against
// the gateway, keeping a report per operation.
type DispatchService struct {
	cfg       Config
	norm      domain.Normalizer
	sender    ports.BatchSender
	gate      ConnectivityGate
	profiles  ProfileResolver
	publisher ports.ProgressPublisher
	metrics   *metrics.DispatchMetrics
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	ops     map[uuid.UUID]*Operation
	order   []uuid.UUID
	current *Operation
}

// Option customises a DispatchService.
type Option func(*DispatchService)

// WithPublisher streams progress events to p.
func WithPublisher(p ports.ProgressPublisher) Option {
	return func(s *DispatchService) { s.publisher = p }
}

// WithMetrics records dispatch metrics on m.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(s *DispatchService) { s.metrics = m }
}

// WithGate refuses new operations while gate reports the gateway disconnected.
func WithGate(g ConnectivityGate) Option {
	return func(s *DispatchService) { s.gate = g }
}

// NewDispatchService wires the service with its dependencies.
func NewDispatchService(
	cfg Config,
	sender ports.BatchSender,
	profiles ProfileResolver,
	log *slog.Logger,
	opts ...Option,
) *DispatchService {
	if cfg.History <= 0 {
		cfg.History = defaultHistory
	}
	s := &DispatchService{
		cfg:      cfg,
		norm:     domain.NewNormalizer(cfg.DefaultDialCode),
		sender:   sender,
		profiles: profiles,
		log:      log,
		now:      time.Now,
		ops:      make(map[uuid.UUID]*Operation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// plan is a validated operation ready to run.
type plan struct {
	mode    domain.Mode
	cfg     ModeConfig
	set     domain.RecipientSet
	message string
}

func (s *DispatchService) prepare(req OperationRequest) (plan, error) {
	if !req.Mode.Valid() {
		return plan{}, fmt.Errorf("%w: %q", domain.ErrInvalidMode, req.Mode)
	}
	mc := s.cfg.mode(req.Mode)

	message := strings.TrimSpace(req.Message)
	if req.Mode == domain.ModeSend && message == "" {
		return plan{}, domain.ErrEmptyMessage
	}

	profile := domain.WildcardProfile()
	if req.Mode != domain.ModeLegacyVerify {
		var err error
		if profile, err = s.profiles.Profile(req.Country); err != nil {
			return plan{}, fmt.Errorf("resolve country: %w", err)
		}
	}

	tokens := append([]string(nil), req.Numbers...)
	tokens = append(tokens, intake.Candidates(req.Cells, mc.MaxRecipients)...)
	set := s.norm.BuildRecipientSet(tokens, profile, mc.MaxRecipients)
	if len(set) == 0 {
		return plan{}, domain.ErrNoValidRecipients
	}

	if s.gate != nil && s.gate.State() == domain.ConnectivityDisconnected {
		return plan{}, domain.ErrGatewayDisconnected
	}

	return plan{mode: req.Mode, cfg: mc, set: set, message: message}, nil
}

// Start validates req, supersedes the current operation and runs the new
// one in the background. The returned operation outlives ctx.
func (s *DispatchService) Start(ctx context.Context, req OperationRequest) (*Operation, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op := s.register(p, cancel)
	go s.run(opCtx, op, p)
	return op, nil
}

// Run validates req and runs it to completion on the calling goroutine.
// Cancelling ctx abandons the operation.
func (s *DispatchService) Run(ctx context.Context, req OperationRequest) (Snapshot, error) {
	p, err := s.prepare(req)
	if err != nil {
		return Snapshot{}, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	op := s.register(p, cancel)
	s.run(opCtx, op, p)
	return op.Snapshot(), nil
}

// Operation looks up an operation by ID.
func (s *DispatchService) Operation(id uuid.UUID) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOperationNotFound, id)
	}
	return op, nil
}

// Current returns the most recently started operation.
func (s *DispatchService) Current() (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, domain.ErrOperationNotFound
	}
	return s.current, nil
}

// register makes op the current operation, abandoning the previous one, and
// trims the history of finished operations.
func (s *DispatchService) register(p plan, cancel context.CancelFunc) *Operation {
	op := newOperation(p.mode, p.set, cancel, s.now())

	s.mu.Lock()
	prev := s.current
	s.current = op
	s.ops[op.ID] = op
	s.order = append(s.order, op.ID)
	for len(s.order) > s.cfg.History {
		oldest := s.ops[s.order[0]]
		if oldest != nil && !oldest.isDone() {
			break
		}
		delete(s.ops, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()

	if prev != nil && !prev.isDone() {
		s.log.Info("operation superseded", "op_id", prev.ID, "by", op.ID)
		prev.Abandon()
	}
	return op
}

func (s *DispatchService) run(ctx context.Context, op *Operation, p plan) {
	batches := domain.Split(p.set, p.cfg.BatchSize)
	limiter := s.pacer()

	var extra map[string]string
	if p.mode == domain.ModeSend {
		extra = map[string]string{"message": p.message}
	}

	log := s.log.With("op_id", op.ID, "mode", p.mode)
	log.Info("operation started", "recipients", len(p.set), "batches", len(batches))
	op.setStatus(startText(p.mode, len(p.set)))
	s.publish(ctx, op)

	abandoned := false
	for i, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			abandoned = true
			break
		}

		n := i + 1
		res := s.sender.Send(ctx, ports.BatchRequest{
			Mode:    p.mode,
			Batch:   batch,
			Extra:   extra,
			Timeout: p.cfg.Timeout,
			OnRetry: func(err error, wait time.Duration) {
				op.setStatus(retryText(wait, n, len(batches)))
				s.publish(ctx, op)
			},
		})
		if ctx.Err() != nil {
			abandoned = true
			break
		}

		switch {
		case res.Err != nil:
			log.Warn("batch failed", "batch", n, "size", len(batch), "attempts", res.Attempts, "err", res.Err)
		case res.DecodeErr != nil:
			log.Warn("batch response not understood", "batch", n, "err", res.DecodeErr)
		}

		added, dropped := op.fold(res, batch, s.now())
		s.metrics.ObserveOutcomes(p.mode, added)
		snap := op.Snapshot()
		if dropped > 0 {
			log.Warn("gateway results named unknown or repeated recipients", "batch", n, "dropped", dropped)
		}
		op.setStatus(progressText(snap.Report, n, len(batches)))
		log.Info("batch processed", "batch", n, "of", len(batches),
			"processed", snap.Report.ProcessedCount, "sent", snap.Report.SentCount, "failed", snap.Report.FailedCount)
		s.publish(ctx, op)
	}

	report := op.Snapshot().Report
	result := "completed"
	if abandoned {
		result = "abandoned"
		op.finish(abandonedText(report), true)
		log.Info("operation abandoned", "processed", report.ProcessedCount, "total", report.TotalPlanned)
	} else {
		op.finish(finalText(p.mode, report), false)
		log.Info("operation completed", "sent", report.SentCount, "failed", report.FailedCount)
	}
	s.metrics.ObserveOperation(p.mode, result)
	s.publish(ctx, op)
}

// pacer spaces batch starts by BatchInterval. The first batch never waits.
func (s *DispatchService) pacer() *rate.Limiter {
	if s.cfg.BatchInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(s.cfg.BatchInterval), 1)
}

func (s *DispatchService) publish(ctx context.Context, op *Operation) {
	if s.publisher == nil {
		return
	}
	snap := op.Snapshot()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := s.publisher.Publish(ctx, domain.ProgressEvent{
		OperationID: snap.ID,
		Mode:        snap.Mode,
		Status:      snap.Status,
		Report:      snap.Report,
		At:          s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("publish progress failed", "op_id", op.ID, "err", err)
	}
}
