package events

import (
	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/domain"
)

// fallbackSlug is used when neither the supplied slug nor the name
// normalizes to anything.
const fallbackSlug = "event"

// maxIDAttempts bounds regeneration when a fresh id collides.
const maxIDAttempts = 3

// allocate picks a collision-free id and slug for a new row. The scan is
// linear in rows and is only correct while the scope lease is held.
func (s *Service) allocate(plan *writePlan, rows []domain.Row) (id, slug string, err error) {
	ids := make(map[string]struct{}, len(rows))
	taken := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		ids[r.ID] = struct{}{}
		existing := r.Slug
		if existing == "" {
			p, _ := domain.ParsePayload(r.Data)
			existing = domain.NormalizeSlug(p.Name)
		}
		if existing != "" {
			taken[existing] = struct{}{}
		}
	}

	if plan.id != "" {
		if _, dup := ids[plan.id]; dup {
			return "", "", apperr.BadInput(apperr.CodeIDConflict, "an event with this id already exists")
		}
		id = plan.id
	} else {
		for attempt := 0; ; attempt++ {
			if attempt == maxIDAttempts {
				return "", "", apperr.Internal(apperr.CodeIDConflict, "could not allocate an event id", nil)
			}
			candidate, err := s.newID()
			if err != nil {
				return "", "", apperr.Internal(apperr.CodeWriteFailure, "could not allocate an event id", err)
			}
			if _, dup := ids[candidate]; !dup {
				id = candidate
				break
			}
		}
	}

	candidate := plan.slug
	if candidate == "" {
		candidate = domain.NormalizeSlug(plan.slugBasis)
	}
	if candidate == "" {
		candidate = fallbackSlug
	}
	return id, domain.UniqueSlug(candidate, taken), nil
}
