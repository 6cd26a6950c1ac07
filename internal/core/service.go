// Package core implements the pictocore query, translation and mutation
// layers on top of a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pictocore/internal/blob"
	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

// SeedMarkerKey is the reserved settings key recording that the seed ran.
const SeedMarkerKey = "__pictocore.seeded"

// SeedFunc populates an empty store. It runs inside the bootstrap transaction.
type SeedFunc func(ctx context.Context, tx *Tx) error

// Service exposes the query and mutation operations over a store.
type Service struct {
	store    domain.PersistentStore
	engine   *domain.RulesEngine
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder
	now      func() time.Time
	newID    func() string
	blobs    blob.Store
	settings SettingsStore
	seed     SeedFunc
	locale   string

	bootMu   sync.Mutex
	booted   atomic.Bool
	bootErr  error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the per-operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the sink receiving one entry per mutation.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides generation of empty primary keys.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithRulesEngine replaces the default rules. A nil engine disables rules.
func WithRulesEngine(e *domain.RulesEngine) Option {
	return func(s *Service) { s.engine = e }
}

// WithBlobStore enables asset operations.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// WithSettingsStore replaces the store-backed settings.
func WithSettingsStore(st SettingsStore) Option {
	return func(s *Service) { s.settings = st }
}

// WithSeed registers the function Bootstrap runs once per store.
func WithSeed(fn SeedFunc) Option {
	return func(s *Service) { s.seed = fn }
}

// WithDefaultLocale sets the locale used when a translated query passes "".
func WithDefaultLocale(locale string) Option {
	return func(s *Service) { s.locale = locale }
}

// NewService constructs a service over store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		engine:  DefaultRulesEngine(),
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
		now:     time.Now,
		newID:   newUUID,
		locale:  "en",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings == nil {
		s.settings = &storeSettings{svc: s}
	}
	return s
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Settings returns the settings store.
func (s *Service) Settings() SettingsStore { return s.settings }

// Close closes the underlying store.
func (s *Service) Close() error { return s.store.Close() }

// Bootstrap runs the seed exactly once per store. The marker setting is
// written in the seed transaction, so a failed seed is retried by the next
// process. Concurrent callers, including every query and mutation, wait for
// the first call to finish and share its result. A call that fails only
// because its own context ended is not remembered; the next caller retries.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.booted.Load() {
		return s.bootErr
	}
	s.bootMu.Lock()
	defer s.bootMu.Unlock()
	if s.booted.Load() {
		return s.bootErr
	}
	err := s.bootstrap(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	s.bootErr = err
	s.booted.Store(true)
	return err
}

func (s *Service) bootstrap(ctx context.Context) error {
	if s.seed == nil {
		return nil
	}
	var seeded bool
	err := s.store.View(ctx, []domain.Collection{domain.CollectionSettings}, func(v domain.TransactionView) error {
		_, ok, err := v.Get(domain.CollectionSettings, SeedMarkerKey)
		seeded = ok
		return err
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if seeded {
		s.logger.Debug("seed already applied")
		return nil
	}
	start := s.now()
	err = s.write(ctx, "bootstrap", domain.AllCollections(), func(tx *Tx) error {
		if err := s.seed(ctx, tx); err != nil {
			return err
		}
		_, err := tx.PutSetting(SeedMarkerKey, tx.now.UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		s.logger.Error("seed failed", "error", err)
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.logger.Info("seed applied", "duration", s.now().Sub(start))
	return nil
}

// run executes a traced, measured and audited write transaction.
func (s *Service) run(ctx context.Context, op string, scope []domain.Collection, fn func(*Tx) error) error {
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	return s.write(ctx, op, scope, fn)
}

func (s *Service) write(ctx context.Context, op string, scope []domain.Collection, fn func(*Tx) error) (err error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	actor, hasActor := ActorFromContext(ctx)
	var changes []domain.Change
	defer func() {
		elapsed := s.now().Sub(start)
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, elapsed)
		entry := AuditEntry{Operation: op, Status: AuditStatusSuccess, Actor: actor, Duration: elapsed, OccurredAt: s.now().UTC()}
		if len(changes) > 0 {
			entry.Entity, entry.EntityID = changes[0].Entity, changes[0].ID
		}
		if err != nil {
			entry.Status, entry.Error = AuditStatusError, err.Error()
			s.logger.Warn("operation failed", "operation", op, "error", err)
		} else {
			s.logger.Debug("operation committed", "operation", op, "changes", len(changes))
		}
		s.audit.Record(ctx, entry)
	}()

	full := append([]domain.Collection(nil), scope...)
	full = append(full, s.engine.Collections()...)
	if hasActor {
		full = append(full, domain.CollectionHistory)
	}
	err = s.store.RunInTransaction(ctx, full, func(raw domain.Transaction) error {
		tx := &Tx{raw: raw, now: s.now().UTC(), actor: actor, newID: s.newID}
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.changes
		if len(changes) == 0 {
			return nil
		}
		res, err := s.engine.Evaluate(ctx, raw, changes)
		if err != nil {
			return fmt.Errorf("evaluate rules: %w", err)
		}
		for _, v := range res.Violations {
			if v.Severity != domain.SeverityBlock {
				s.logger.Warn("rule violation", "rule", v.Rule, "severity", v.Severity, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
			}
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
		return nil
	})
	return wrapTxError(op, err)
}

// view executes a traced, measured read-only transaction.
func (s *Service) view(ctx context.Context, op string, scope []domain.Collection, fn func(domain.TransactionView) error) (err error) {
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	}()
	return wrapTxError(op, s.store.View(ctx, scope, fn))
}

// wrapTxError wraps a failed transaction in domain.TransactionError unless
// the error is already a validation, duplicate key, not-found or transaction
// error, which callers match on directly.
func wrapTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		txErr domain.TransactionError
		dup   domain.DuplicateKeyError
		nf    ErrNotFound
	)
	if _, ok := schema.AsValidation(err); ok || errors.As(err, &txErr) || errors.As(err, &dup) || errors.As(err, &nf) {
		return err
	}
	return domain.TransactionError{Op: op, Err: err}
}

// ResolveLocale canonicalizes locale, substituting the service default for "".
func (s *Service) ResolveLocale(locale string) (string, error) {
	if locale == "" {
		locale = s.locale
	}
	if err := schema.New().Locale("locale", locale).Err(); err != nil {
		return "", err
	}
	return schema.CanonicalLocale(locale)
}
