// Package events is the event persistence core: the save pipeline, the
// loaders and the update adapter built on top of them.
//
// Service is the only code path that mutates the row store. Writes to one
// tenant scope are serialized by the Locker; reads never lock.
package events

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/tenant"
)

// DefaultLockTimeout bounds the wait for a write lease.
const DefaultLockTimeout = 10 * time.Second

// Deps are the collaborators of a Service. Guard, Diagnostics and Pool
// are optional.
type Deps struct {
	Store       RowStore
	Locker      Locker
	Directory   Directory
	Hydrator    Hydrator
	Guard       IdempotencyGuard
	Diagnostics Diagnostics
	Pool        Pool
	Logger      *zap.Logger

	LockTimeout time.Duration
	Now         func() time.Time
	NewID       func() (string, error)
}

// Service implements save, load and update.
type Service struct {
	store       RowStore
	locker      Locker
	directory   Directory
	hydrator    Hydrator
	guard       IdempotencyGuard
	diagnostics Diagnostics
	pool        Pool
	logger      *zap.Logger

	lockTimeout time.Duration
	now         func() time.Time
	newID       func() (string, error)
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		locker:      d.Locker,
		directory:   d.Directory,
		hydrator:    d.Hydrator,
		guard:       d.Guard,
		diagnostics: d.Diagnostics,
		pool:        d.Pool,
		logger:      d.Logger,
		lockTimeout: d.LockTimeout,
		now:         d.Now,
		newID:       d.NewID,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = newUUID
	}
	return s
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// sanitizeID trims id and checks it against the stored id alphabet.
// Legacy rows may carry ids that are not UUIDs.
func sanitizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if !idPattern.MatchString(id) {
		return "", apperr.BadInput(apperr.CodeInvalidID, "id is malformed")
	}
	return id, nil
}

// resolve checks that the tenant exists and has scope enabled.
func (s *Service) resolve(ctx context.Context, tenantID, scope string) (tenant.Brand, string, error) {
	if scope == "" {
		scope = domain.DefaultScope
	}
	brand, ok := s.directory.Brand(ctx, tenantID)
	if !ok {
		return tenant.Brand{}, "", apperr.NotFound(apperr.CodeTenantNotFound, "tenant not found")
	}
	if !brand.ScopeEnabled(scope) {
		return tenant.Brand{}, "", apperr.NotFound(apperr.CodeScopeNotEnabled, "scope is not enabled for this tenant")
	}
	return brand, scope, nil
}

func (s *Service) listRows(ctx context.Context, tenantID, scope string) ([]domain.Row, error) {
	rows, err := s.store.ListRows(ctx, tenantID, scope)
	if err != nil {
		return nil, apperr.Internal(apperr.CodeStoreFailure, "could not read events", err)
	}
	return rows, nil
}

// warnContract logs holistic validation problems and forwards them to the
// diagnostics side channel. It never fails the call.
func (s *Service) warnContract(stage, tenantID, scope string, ev *domain.Event) {
	fes := domain.ValidateEvent(ev, domain.ValidateOptions{})
	if len(fes) == 0 {
		return
	}
	msgs := domain.Messages(fes)
	s.logger.Warn("event does not satisfy the contract",
		zap.String("kind", string(apperr.KindContract)),
		zap.String("stage", stage),
		zap.String("tenant_id", tenantID),
		zap.String("scope", scope),
		zap.String("event_id", ev.ID),
		zap.Strings("violations", msgs),
	)
	if s.diagnostics != nil {
		s.diagnostics.Report(diagnostics.Record{
			TenantID:   tenantID,
			Scope:      scope,
			EventID:    ev.ID,
			Stage:      stage,
			Violations: msgs,
			At:         s.now().Unix(),
		})
	}
}
