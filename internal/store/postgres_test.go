package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-api/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var contactCols = []string{"id", "email", "phone", "phone_hash", "first_name", "last_name", "zip", "created_at", "updated_at"}

func TestPostgresStore_GetContactByEmail_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, email, phone, phone_hash`).
		WithArgs("missing@x.com").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetContactByEmail(context.Background(), "missing@x.com")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetContactByEmail_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, email, phone, phone_hash`).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows(contactCols).
			AddRow("c1", "a@x.com", "+15551234567", "hash", "Jane", "Doe", "33101", now, now))

	c, err := s.GetContactByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "+15551234567", c.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertContact_UniqueViolation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO contacts`).
		WithArgs(pgxmock.AnyArg(), "a@x.com", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.InsertContact(context.Background(), &model.Contact{Email: "a@x.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GapFillContact_CoalescesEmptyOnly(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE contacts SET`).
		WithArgs("c1", "+15551234567", "hash", "Jane", "Doe", "33101", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(contactCols).
			AddRow("c1", "a@x.com", "+15550000000", "oldhash", "Janet", "Doe", "33101", now, now))

	got, err := s.GapFillContact(context.Background(), &model.Contact{
		ID: "c1", Phone: "+15551234567", PhoneHash: "hash",
		FirstName: "Jane", LastName: "Doe", Zip: "33101",
	})
	require.NoError(t, err)
	assert.Equal(t, "Janet", got.FirstName, "store-side merge result returned as-is")
	assert.NoError(t, mock.ExpectationsWereMet())
}

var leadCols = []string{
	"id", "contact_id", "session_id", "funnel_type", "verified",
	"zip", "state", "state_name", "referrer", "landing_page", "answers",
	"trusted_form_cert_url", "jornaya_lead_id",
	"dispatch_status", "dispatch_success", "dispatch_error", "dispatched_at",
	"created_at", "updated_at",
}

func leadRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(leadCols).AddRow(
		"l1", "c1", "s1", "final-expense", false,
		"33101", "FL", "Florida", "", "", []byte(`{"contact":{"email":"a@x.com"}}`),
		"", "", "", false, "", nil, now, now,
	)
}

func TestPostgresStore_UpsertLead_ReturnsPersistedRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO leads .* ON CONFLICT \(contact_id, session_id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(leadRow(now))

	got, err := s.UpsertLead(context.Background(), &model.Lead{
		ContactID: "c1", SessionID: "s1", FunnelType: model.FunnelFinalExpense,
	})
	require.NoError(t, err)
	assert.Equal(t, "l1", got.ID)
	assert.Equal(t, "a@x.com", got.Answers.Contact.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeadBySession_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE contact_id = \$1 AND session_id = \$2`).
		WithArgs("c1", "missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetLeadBySession(context.Background(), "c1", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeadAttribution(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT trusted_form_cert_url, jornaya_lead_id FROM leads`).
		WithArgs("l1").
		WillReturnRows(pgxmock.NewRows([]string{"trusted_form_cert_url", "jornaya_lead_id"}).
			AddRow("https://cert.trustedform.com/abc", ""))

	tokens, err := s.GetLeadAttribution(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, tokens.HasCertificate())
	assert.Empty(t, tokens.JornayaLeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLeadDispatch_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLeadDispatch(context.Background(), "missing", model.DispatchOutcome{
		Success: true, DispatchedAt: time.Now().UTC(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSessionEvent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, session_id, event_type`).
		WithArgs("s1").
		WillReturnError(pgx.ErrNoRows)

	ev, err := s.LatestSessionEvent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.NoError(t, mock.ExpectationsWereMet())
}
