package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-api/internal/model"
)

// ErrDuplicate is returned by insert operations that hit a unique
// constraint (e.g., two concurrent submissions racing on the same email).
// Callers treat it as "the row already exists" and re-read.
var ErrDuplicate = eris.New("store: duplicate key")

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Contacts
	GetContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	GetContactByPhoneHash(ctx context.Context, phoneHash string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error
	GapFillContact(ctx context.Context, c *model.Contact) (*model.Contact, error)

	// Leads
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	GetLeadBySession(ctx context.Context, contactID, sessionID string) (*model.Lead, error)
	UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	GetLeadAttribution(ctx context.Context, leadID string) (model.AttributionTokens, error)
	UpdateLeadDispatch(ctx context.Context, leadID string, outcome model.DispatchOutcome) error

	// Session event trail
	LatestSessionEvent(ctx context.Context, sessionID string) (*model.SessionEvent, error)
	AppendSessionEvent(ctx context.Context, ev *model.SessionEvent) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
