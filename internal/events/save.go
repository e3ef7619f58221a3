package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/hydrate"
	"example.com/brandevents/internal/idempotency"
	"example.com/brandevents/internal/lock"
)

// Mode selects the save pipeline branch.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// SaveOptions control a single Save.
type SaveOptions struct {
	Scope      string
	Mode       Mode
	TemplateID string
	// IdempotencyKey suppresses repeated creates within a short window.
	// Ignored in update mode.
	IdempotencyKey string
}

// writePlan is everything the locked section needs.
type writePlan struct {
	tenantID string
	scope    string
	mode     Mode
	patch    domain.Patch

	// create
	id        string
	slug      string
	payload   domain.Payload
	template  string
	slugBasis string
}

// Save creates or updates one event and returns it freshly hydrated.
//
// In create mode id may be empty, in which case the payload "id" key or a
// new UUID is used. In update mode id names the existing row and payload
// keys are merged onto the stored payload; absent keys are untouched.
func (s *Service) Save(ctx context.Context, tenantID, id string, payload domain.Patch, opts SaveOptions) (domain.Event, error) {
	brand, scope, err := s.resolve(ctx, tenantID, opts.Scope)
	if err != nil {
		return domain.Event{}, err
	}

	patch := payload.Clone()
	domain.Migrate(patch, 0)
	plan := &writePlan{tenantID: tenantID, scope: scope, mode: opts.Mode, patch: patch, template: strings.TrimSpace(opts.TemplateID)}

	var idemKey string
	switch opts.Mode {
	case ModeCreate:
		if err := s.prepareCreate(plan, id); err != nil {
			return domain.Event{}, err
		}
		if key, ok := idempotency.DeriveKey(tenantID, scope, opts.IdempotencyKey); ok && s.guard != nil {
			prev, seen, err := s.guard.Seen(ctx, key)
			if err != nil {
				s.logger.Warn("idempotency lookup failed", zap.String("tenant_id", tenantID), zap.Error(err))
			} else if seen {
				return domain.Event{}, apperr.BadInput(apperr.CodeDuplicateSubmission,
					fmt.Sprintf("this submission was already accepted as event %s", prev))
			}
			idemKey = key
		}
	case ModeUpdate:
		if plan.id, err = sanitizeID(id); err != nil {
			return domain.Event{}, err
		}
	default:
		return domain.Event{}, apperr.BadInput(apperr.CodeValidationFailed, fmt.Sprintf("unknown save mode %q", opts.Mode))
	}

	row, err := s.writeLocked(ctx, plan)
	if err != nil {
		return domain.Event{}, err
	}

	if idemKey != "" {
		if err := s.guard.Mark(ctx, idemKey, row.ID); err != nil {
			s.logger.Warn("idempotency mark failed", zap.String("event_id", row.ID), zap.Error(err))
		}
	}

	ev := s.hydrator.Hydrate(ctx, row, hydrate.Options{BaseURL: brand.BaseURL, HydrateSponsors: true})
	s.warnContract("save", tenantID, scope, &ev)
	return ev, nil
}

// prepareCreate validates create input and resolves the caller's id and
// slug before any lock is taken.
func (s *Service) prepareCreate(plan *writePlan, id string) error {
	var fes []domain.FieldError
	for _, key := range []string{"name", "startDate", "venue"} {
		if v, ok := plan.patch.String(key); !ok || strings.TrimSpace(v) == "" {
			fes = append(fes, domain.FieldError{Field: key, Msg: "required"})
		}
	}
	var p domain.Payload
	fes = append(fes, domain.ApplyPatch(&p, plan.patch, domain.PatchOptions{Validate: true, Strict: true})...)
	if len(fes) > 0 {
		return apperr.Invalid(dedupe(fes))
	}
	plan.payload = p
	plan.slugBasis = p.Name

	if id == "" {
		id, _ = plan.patch.String("id")
	}
	if id = strings.TrimSpace(id); id != "" {
		if !domain.IsUUIDv4(id) {
			return apperr.BadInput(apperr.CodeInvalidID, "id must be a lowercase UUID v4")
		}
		plan.id = id
	}

	if raw, ok := plan.patch.String("slug"); ok && strings.TrimSpace(raw) != "" {
		slug := domain.NormalizeSlug(raw)
		if slug == "" {
			return apperr.BadInput(apperr.CodeInvalidSlug, "slug has no usable characters")
		}
		plan.slug = slug
	}
	return nil
}

// writeLocked runs the read-modify-write under the tenant scope lease.
// The lease is released on every path, including panics.
func (s *Service) writeLocked(ctx context.Context, plan *writePlan) (row domain.Row, err error) {
	lease, err := s.locker.Acquire(ctx, lock.Key(plan.tenantID, plan.scope), s.lockTimeout)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return domain.Row{}, apperr.Retryable(apperr.CodeLockTimeout, "the event store is busy, retry shortly", err)
		}
		return domain.Row{}, apperr.Internal(apperr.CodeLockTimeout, "could not acquire write lock", err)
	}
	defer lease.Release()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during event write",
				zap.String("tenant_id", plan.tenantID),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
			err = apperr.Internal(apperr.CodeWriteFailure, "could not save event", fmt.Errorf("panic: %v", r))
		}
	}()

	rows, err := s.listRows(ctx, plan.tenantID, plan.scope)
	if err != nil {
		return domain.Row{}, err
	}
	if plan.mode == ModeCreate {
		return s.appendLocked(ctx, plan, rows)
	}
	return s.overwriteLocked(ctx, plan, rows)
}

func (s *Service) appendLocked(ctx context.Context, plan *writePlan, rows []domain.Row) (domain.Row, error) {
	id, slug, err := s.allocate(plan, rows)
	if err != nil {
		return domain.Row{}, err
	}

	now := s.now().UTC().Format(time.RFC3339)
	p := plan.payload
	p.UpdatedAt = now
	data, err := p.Encode()
	if err != nil {
		return domain.Row{}, apperr.Internal(apperr.CodeWriteFailure, "could not save event", err)
	}
	template := plan.template
	if template == "" {
		template = domain.DefaultTemplateID
	}
	row := domain.Row{
		ID:         id,
		TenantID:   plan.tenantID,
		TemplateID: template,
		Data:       data,
		CreatedAt:  now,
		Slug:       slug,
	}
	if err := s.store.AppendRow(ctx, plan.tenantID, plan.scope, row); err != nil {
		return domain.Row{}, apperr.Internal(apperr.CodeWriteFailure, "could not save event", err)
	}
	s.logger.Info("event created",
		zap.String("tenant_id", plan.tenantID),
		zap.String("scope", plan.scope),
		zap.String("event_id", id),
		zap.String("slug", slug),
	)
	return row, nil
}

func (s *Service) overwriteLocked(ctx context.Context, plan *writePlan, rows []domain.Row) (domain.Row, error) {
	index := -1
	for i, r := range rows {
		if r.ID == plan.id && r.TenantID == plan.tenantID {
			index = i
			break
		}
	}
	if index < 0 {
		return domain.Row{}, apperr.NotFound(apperr.CodeEventNotFound, "event not found")
	}
	row := rows[index]

	p, problems := domain.ParsePayload(row.Data)
	if len(problems) > 0 {
		s.logger.Warn("stored payload had problems before update",
			zap.String("event_id", row.ID),
			zap.Strings("problems", domain.Messages(problems)),
		)
	}
	if fes := domain.ApplyPatch(&p, plan.patch, domain.PatchOptions{Validate: true, Strict: true}); len(fes) > 0 {
		return domain.Row{}, apperr.Invalid(fes)
	}
	p.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	data, err := p.Encode()
	if err != nil {
		return domain.Row{}, apperr.Internal(apperr.CodeWriteFailure, "could not save event", err)
	}
	row.Data = data
	if plan.template != "" {
		row.TemplateID = plan.template
	}
	if err := s.store.OverwriteRow(ctx, plan.tenantID, plan.scope, index, row); err != nil {
		return domain.Row{}, apperr.Internal(apperr.CodeWriteFailure, "could not save event", err)
	}
	s.logger.Info("event updated",
		zap.String("tenant_id", plan.tenantID),
		zap.String("scope", plan.scope),
		zap.String("event_id", row.ID),
	)
	return row, nil
}

// dedupe drops repeated violations, keeping the first occurrence.
func dedupe(fes []domain.FieldError) []domain.FieldError {
	seen := make(map[domain.FieldError]bool, len(fes))
	out := fes[:0]
	for _, fe := range fes {
		if !seen[fe] {
			seen[fe] = true
			out = append(out, fe)
		}
	}
	return out
}
