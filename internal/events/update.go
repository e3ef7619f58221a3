package events

import (
	"context"
	"errors"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/domain"
)

// UpdateOptions control Update.
type UpdateOptions struct {
	Scope      string
	TemplateID string
}

// Update applies a partial update. The stored event is loaded, patch is
// merged onto it with MergeUpdate, and only the fields patch touched are
// handed to the update pipeline, so concurrent updates of other fields
// are never overwritten with stale values.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch domain.Patch, opts UpdateOptions) (domain.Event, error) {
	item, err := s.GetByID(ctx, tenantID, id, GetOptions{Scope: opts.Scope, SkipValidation: true})
	if err != nil {
		return domain.Event{}, err
	}

	merged, err := domain.MergeUpdate(item.Event, patch)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return domain.Event{}, apperr.Invalid(ve.Violations)
		}
		return domain.Event{}, apperr.BadInput(apperr.CodeValidationFailed, err.Error())
	}

	touched := patch.Clone()
	domain.Migrate(touched, 0)
	full := domain.PatchFromEvent(merged)
	out := make(domain.Patch, len(touched))
	for k := range touched {
		if v, ok := full[k]; ok {
			out[k] = v
		}
	}

	return s.Save(ctx, tenantID, item.Event.ID, out, SaveOptions{
		Scope:      opts.Scope,
		Mode:       ModeUpdate,
		TemplateID: opts.TemplateID,
	})
}
