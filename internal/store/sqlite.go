package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and tests; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	phone      TEXT NOT NULL DEFAULT '',
	phone_hash TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	zip        TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone_hash ON contacts(phone_hash);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY,
	contact_id            TEXT NOT NULL REFERENCES contacts(id),
	session_id            TEXT NOT NULL,
	funnel_type           TEXT NOT NULL DEFAULT 'other',
	verified              INTEGER NOT NULL DEFAULT 0,
	zip                   TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	state_name            TEXT NOT NULL DEFAULT '',
	referrer              TEXT NOT NULL DEFAULT '',
	landing_page          TEXT NOT NULL DEFAULT '',
	answers               TEXT NOT NULL DEFAULT '{}',
	trusted_form_cert_url TEXT NOT NULL DEFAULT '',
	jornaya_lead_id       TEXT NOT NULL DEFAULT '',
	dispatch_status       TEXT NOT NULL DEFAULT '',
	dispatch_success      INTEGER NOT NULL DEFAULT 0,
	dispatch_error        TEXT NOT NULL DEFAULT '',
	dispatched_at         DATETIME,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL,
	UNIQUE (contact_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_session_id ON leads(session_id);
CREATE INDEX IF NOT EXISTS idx_leads_dispatch_status ON leads(dispatch_status);

CREATE TABLE IF NOT EXISTS session_events (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	referrer     TEXT NOT NULL DEFAULT '',
	landing_page TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) GetContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return s.scanContact(s.db.QueryRowContext(ctx,
		`SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at
		 FROM contacts WHERE email = ?`, email), "get contact by email")
}

func (s *SQLiteStore) GetContactByPhoneHash(ctx context.Context, phoneHash string) (*model.Contact, error) {
	return s.scanContact(s.db.QueryRowContext(ctx,
		`SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at
		 FROM contacts WHERE phone_hash = ?
		 ORDER BY created_at ASC LIMIT 1`, phoneHash), "get contact by phone hash")
}

func (s *SQLiteStore) scanContact(row *sql.Row, op string) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Email, &c.Phone, &c.PhoneHash, &c.FirstName, &c.LastName, &c.Zip, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	return &c, nil
}

func (s *SQLiteStore) InsertContact(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Email, c.Phone, c.PhoneHash, c.FirstName, c.LastName, c.Zip, now, now,
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrDuplicate
		}
		return eris.Wrap(err, "sqlite: insert contact")
	}
	return nil
}

func (s *SQLiteStore) GapFillContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET
			phone      = COALESCE(NULLIF(phone, ''), ?),
			phone_hash = COALESCE(NULLIF(phone_hash, ''), ?),
			first_name = COALESCE(NULLIF(first_name, ''), ?),
			last_name  = COALESCE(NULLIF(last_name, ''), ?),
			zip        = COALESCE(NULLIF(zip, ''), ?),
			updated_at = ?
		 WHERE id = ?`,
		c.Phone, c.PhoneHash, c.FirstName, c.LastName, c.Zip, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: gap fill contact %s", c.ID)
	}
	return s.scanContact(s.db.QueryRowContext(ctx,
		`SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at
		 FROM contacts WHERE id = ?`, c.ID), "re-read contact")
}

const sqliteLeadColumns = `id, contact_id, session_id, funnel_type, verified,
	zip, state, state_name, referrer, landing_page, answers,
	trusted_form_cert_url, jornaya_lead_id,
	dispatch_status, dispatch_success, dispatch_error, dispatched_at,
	created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	return s.scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, leadID), "get lead")
}

func (s *SQLiteStore) GetLeadBySession(ctx context.Context, contactID, sessionID string) (*model.Lead, error) {
	return s.scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE contact_id = ? AND session_id = ?`,
		contactID, sessionID), "get lead by session")
}

func (s *SQLiteStore) scanLead(row *sql.Row, op string) (*model.Lead, error) {
	var l model.Lead
	var answersJSON string
	var dispatchedAt sql.NullTime
	err := row.Scan(
		&l.ID, &l.ContactID, &l.SessionID, &l.FunnelType, &l.Verified,
		&l.Zip, &l.State, &l.StateName, &l.Referrer, &l.LandingPage, &answersJSON,
		&l.Attribution.TrustedFormCertURL, &l.Attribution.JornayaLeadID,
		&l.DispatchStatus, &l.DispatchSuccess, &l.DispatchError, &dispatchedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	if dispatchedAt.Valid {
		l.DispatchedAt = &dispatchedAt.Time
	}
	if err := json.Unmarshal([]byte(answersJSON), &l.Answers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead answers")
	}
	return &l, nil
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	answersJSON, err := json.Marshal(lead.Answers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal lead answers")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, contact_id, session_id, funnel_type, verified,
			zip, state, state_name, referrer, landing_page, answers,
			trusted_form_cert_url, jornaya_lead_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (contact_id, session_id) DO UPDATE SET
			funnel_type  = COALESCE(NULLIF(excluded.funnel_type, ''), funnel_type),
			verified     = verified OR excluded.verified,
			zip          = COALESCE(NULLIF(excluded.zip, ''), zip),
			state        = COALESCE(NULLIF(excluded.state, ''), state),
			state_name   = COALESCE(NULLIF(excluded.state_name, ''), state_name),
			referrer     = COALESCE(NULLIF(excluded.referrer, ''), referrer),
			landing_page = COALESCE(NULLIF(excluded.landing_page, ''), landing_page),
			answers      = excluded.answers,
			trusted_form_cert_url = COALESCE(NULLIF(excluded.trusted_form_cert_url, ''), trusted_form_cert_url),
			jornaya_lead_id       = COALESCE(NULLIF(excluded.jornaya_lead_id, ''), jornaya_lead_id),
			updated_at   = excluded.updated_at`,
		lead.ID, lead.ContactID, lead.SessionID, string(lead.FunnelType), lead.Verified,
		lead.Zip, lead.State, lead.StateName, lead.Referrer, lead.LandingPage, string(answersJSON),
		lead.Attribution.TrustedFormCertURL, lead.Attribution.JornayaLeadID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert lead")
	}

	out, err := s.GetLeadBySession(ctx, lead.ContactID, lead.SessionID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, eris.Errorf("upsert returned no row for session %s", lead.SessionID)
	}
	return out, nil
}

func (s *SQLiteStore) GetLeadAttribution(ctx context.Context, leadID string) (model.AttributionTokens, error) {
	var t model.AttributionTokens
	err := s.db.QueryRowContext(ctx,
		`SELECT trusted_form_cert_url, jornaya_lead_id FROM leads WHERE id = ?`,
		leadID,
	).Scan(&t.TrustedFormCertURL, &t.JornayaLeadID)
	if err != nil {
		return model.AttributionTokens{}, eris.Wrapf(err, "sqlite: get lead attribution %s", leadID)
	}
	return t, nil
}

func (s *SQLiteStore) UpdateLeadDispatch(ctx context.Context, leadID string, outcome model.DispatchOutcome) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			dispatch_status = ?, dispatch_success = ?, dispatch_error = ?,
			dispatched_at = ?, updated_at = ?
		 WHERE id = ?`,
		outcome.Status(), outcome.Success, outcome.Error,
		outcome.DispatchedAt, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead dispatch %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) LatestSessionEvent(ctx context.Context, sessionID string) (*model.SessionEvent, error) {
	var ev model.SessionEvent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, event_type, referrer, landing_page, created_at
		 FROM session_events WHERE session_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		sessionID,
	).Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Referrer, &ev.LandingPage, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest session event")
	}
	return &ev, nil
}

func (s *SQLiteStore) AppendSessionEvent(ctx context.Context, ev *model.SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (id, session_id, event_type, referrer, landing_page, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.EventType, ev.Referrer, ev.LandingPage, ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append session event")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
