// Package contact resolves inbound submissions to a single durable contact.
package contact

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/store"
)

// Resolver maps (email, phone) to exactly one contact, creating it if absent.
type Resolver struct {
	store store.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve finds or creates the contact for a submission. Lookup order is
// email first, phone hash second. An existing contact is only gap-filled:
// populated fields are never overwritten. Storage errors propagate; the
// retry policy belongs to the HTTP layer.
func (r *Resolver) Resolve(ctx context.Context, email, firstName, lastName, phone, zip string) (*model.Contact, error) {
	email = NormalizeEmail(email)
	e164 := NormalizePhone(phone)
	hash := HashPhone(e164)

	candidate := &model.Contact{
		Email:     email,
		Phone:     e164,
		PhoneHash: hash,
		FirstName: firstName,
		LastName:  lastName,
		Zip:       zip,
	}

	existing, err := r.store.GetContactByEmail(ctx, email)
	if err != nil {
		return nil, eris.Wrap(err, "contact: lookup by email")
	}
	if existing == nil && hash != "" {
		existing, err = r.store.GetContactByPhoneHash(ctx, hash)
		if err != nil {
			return nil, eris.Wrap(err, "contact: lookup by phone hash")
		}
	}

	if existing != nil {
		candidate.ID = existing.ID
		merged, err := r.store.GapFillContact(ctx, candidate)
		if err != nil {
			return nil, eris.Wrap(err, "contact: gap fill")
		}
		return merged, nil
	}

	if err := r.store.InsertContact(ctx, candidate); err != nil {
		if eris.Is(err, store.ErrDuplicate) {
			// Lost a race with an identical concurrent submission; the
			// other request's row is the contact.
			zap.L().Debug("contact insert raced, re-reading", zap.String("email", email))
			won, rerr := r.store.GetContactByEmail(ctx, email)
			if rerr != nil {
				return nil, eris.Wrap(rerr, "contact: re-read after conflict")
			}
			if won == nil {
				return nil, eris.Errorf("contact vanished after conflict: %s", email)
			}
			return won, nil
		}
		return nil, eris.Wrap(err, "contact: insert")
	}
	return candidate, nil
}
