package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-api/internal/db"
	"github.com/sells-group/lead-api/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, contact_id, session_id, funnel_type, verified,
	zip, state, state_name, referrer, landing_page, answers,
	trusted_form_cert_url, jornaya_lead_id,
	dispatch_status, dispatch_success, dispatch_error, dispatched_at,
	created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations on the submission path.
var preparedStatements = map[string]string{
	"get_contact_by_email": `SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at FROM contacts WHERE email = $1`,
	"get_contact_by_hash":  `SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at FROM contacts WHERE phone_hash = $1 ORDER BY created_at ASC LIMIT 1`,
	"get_lead_attribution": `SELECT trusted_form_cert_url, jornaya_lead_id FROM leads WHERE id = $1`,
	"latest_session_event": `SELECT id, session_id, event_type, referrer, landing_page, created_at FROM session_events WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	email      TEXT NOT NULL UNIQUE,
	phone      TEXT NOT NULL DEFAULT '',
	phone_hash TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	zip        TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone_hash ON contacts(phone_hash);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	contact_id            TEXT NOT NULL REFERENCES contacts(id),
	session_id            TEXT NOT NULL,
	funnel_type           TEXT NOT NULL DEFAULT 'other',
	verified              BOOLEAN NOT NULL DEFAULT false,
	zip                   TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	state_name            TEXT NOT NULL DEFAULT '',
	referrer              TEXT NOT NULL DEFAULT '',
	landing_page          TEXT NOT NULL DEFAULT '',
	answers               JSONB NOT NULL DEFAULT '{}',
	trusted_form_cert_url TEXT NOT NULL DEFAULT '',
	jornaya_lead_id       TEXT NOT NULL DEFAULT '',
	dispatch_status       TEXT NOT NULL DEFAULT '',
	dispatch_success      BOOLEAN NOT NULL DEFAULT false,
	dispatch_error        TEXT NOT NULL DEFAULT '',
	dispatched_at         TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (contact_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_session_id ON leads(session_id);
CREATE INDEX IF NOT EXISTS idx_leads_dispatch_status ON leads(dispatch_status);

CREATE TABLE IF NOT EXISTS session_events (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id   TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	referrer     TEXT NOT NULL DEFAULT '',
	landing_page TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_events_session_id ON session_events(session_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) GetContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return s.scanContact(s.pool.QueryRow(ctx,
		`SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at
		 FROM contacts WHERE email = $1`,
		email,
	), "get contact by email")
}

func (s *PostgresStore) GetContactByPhoneHash(ctx context.Context, phoneHash string) (*model.Contact, error) {
	return s.scanContact(s.pool.QueryRow(ctx,
		`SELECT id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at
		 FROM contacts WHERE phone_hash = $1
		 ORDER BY created_at ASC LIMIT 1`,
		phoneHash,
	), "get contact by phone hash")
}

func (s *PostgresStore) scanContact(row pgx.Row, op string) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.Email, &c.Phone, &c.PhoneHash, &c.FirstName, &c.LastName, &c.Zip, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	return &c, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, c *model.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Email, c.Phone, c.PhoneHash, c.FirstName, c.LastName, c.Zip, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return eris.Wrap(err, "postgres: insert contact")
	}
	return nil
}

// GapFillContact populates only empty columns on an existing contact from
// the supplied values and returns the merged row. Populated columns are
// never overwritten.
func (s *PostgresStore) GapFillContact(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	var out model.Contact
	err := s.pool.QueryRow(ctx,
		`UPDATE contacts SET
			phone      = COALESCE(NULLIF(phone, ''), $2),
			phone_hash = COALESCE(NULLIF(phone_hash, ''), $3),
			first_name = COALESCE(NULLIF(first_name, ''), $4),
			last_name  = COALESCE(NULLIF(last_name, ''), $5),
			zip        = COALESCE(NULLIF(zip, ''), $6),
			updated_at = $7
		 WHERE id = $1
		 RETURNING id, email, phone, phone_hash, first_name, last_name, zip, created_at, updated_at`,
		c.ID, c.Phone, c.PhoneHash, c.FirstName, c.LastName, c.Zip, time.Now().UTC(),
	).Scan(&out.ID, &out.Email, &out.Phone, &out.PhoneHash, &out.FirstName, &out.LastName, &out.Zip, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: gap fill contact %s", c.ID)
	}
	return &out, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	return s.scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`,
		leadID,
	), "get lead")
}

func (s *PostgresStore) GetLeadBySession(ctx context.Context, contactID, sessionID string) (*model.Lead, error) {
	return s.scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE contact_id = $1 AND session_id = $2`,
		contactID, sessionID,
	), "get lead by session")
}

func (s *PostgresStore) scanLead(row pgx.Row, op string) (*model.Lead, error) {
	var l model.Lead
	var answersJSON []byte
	err := row.Scan(
		&l.ID, &l.ContactID, &l.SessionID, &l.FunnelType, &l.Verified,
		&l.Zip, &l.State, &l.StateName, &l.Referrer, &l.LandingPage, &answersJSON,
		&l.Attribution.TrustedFormCertURL, &l.Attribution.JornayaLeadID,
		&l.DispatchStatus, &l.DispatchSuccess, &l.DispatchError, &l.DispatchedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	if err := json.Unmarshal(answersJSON, &l.Answers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead answers")
	}
	return &l, nil
}

// UpsertLead inserts a lead or merges into the existing row for the same
// (contact_id, session_id). Text fields follow last-non-empty-value-wins:
// an upsert carrying empty values never clobbers columns another writer
// (e.g., the attribution script's write path) already populated.
func (s *PostgresStore) UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	answersJSON, err := json.Marshal(lead.Answers)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal lead answers")
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO leads (id, contact_id, session_id, funnel_type, verified,
			zip, state, state_name, referrer, landing_page, answers,
			trusted_form_cert_url, jornaya_lead_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		 ON CONFLICT (contact_id, session_id) DO UPDATE SET
			funnel_type  = COALESCE(NULLIF(EXCLUDED.funnel_type, ''), leads.funnel_type),
			verified     = leads.verified OR EXCLUDED.verified,
			zip          = COALESCE(NULLIF(EXCLUDED.zip, ''), leads.zip),
			state        = COALESCE(NULLIF(EXCLUDED.state, ''), leads.state),
			state_name   = COALESCE(NULLIF(EXCLUDED.state_name, ''), leads.state_name),
			referrer     = COALESCE(NULLIF(EXCLUDED.referrer, ''), leads.referrer),
			landing_page = COALESCE(NULLIF(EXCLUDED.landing_page, ''), leads.landing_page),
			answers      = EXCLUDED.answers,
			trusted_form_cert_url = COALESCE(NULLIF(EXCLUDED.trusted_form_cert_url, ''), leads.trusted_form_cert_url),
			jornaya_lead_id       = COALESCE(NULLIF(EXCLUDED.jornaya_lead_id, ''), leads.jornaya_lead_id),
			updated_at   = EXCLUDED.updated_at
		 RETURNING `+leadColumns,
		lead.ID, lead.ContactID, lead.SessionID, string(lead.FunnelType), lead.Verified,
		lead.Zip, lead.State, lead.StateName, lead.Referrer, lead.LandingPage, answersJSON,
		lead.Attribution.TrustedFormCertURL, lead.Attribution.JornayaLeadID, now,
	)
	out, err := s.scanLead(row, "upsert lead")
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, eris.Errorf("upsert returned no row for session %s", lead.SessionID)
	}
	return out, nil
}

func (s *PostgresStore) GetLeadAttribution(ctx context.Context, leadID string) (model.AttributionTokens, error) {
	var t model.AttributionTokens
	err := s.pool.QueryRow(ctx,
		`SELECT trusted_form_cert_url, jornaya_lead_id FROM leads WHERE id = $1`,
		leadID,
	).Scan(&t.TrustedFormCertURL, &t.JornayaLeadID)
	if err != nil {
		return model.AttributionTokens{}, eris.Wrapf(err, "postgres: get lead attribution %s", leadID)
	}
	return t, nil
}

func (s *PostgresStore) UpdateLeadDispatch(ctx context.Context, leadID string, outcome model.DispatchOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			dispatch_status = $1, dispatch_success = $2, dispatch_error = $3,
			dispatched_at = $4, updated_at = $5
		 WHERE id = $6`,
		outcome.Status(), outcome.Success, outcome.Error,
		outcome.DispatchedAt, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead dispatch %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) LatestSessionEvent(ctx context.Context, sessionID string) (*model.SessionEvent, error) {
	var ev model.SessionEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, event_type, referrer, landing_page, created_at
		 FROM session_events WHERE session_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		sessionID,
	).Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Referrer, &ev.LandingPage, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest session event")
	}
	return &ev, nil
}

func (s *PostgresStore) AppendSessionEvent(ctx context.Context, ev *model.SessionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_events (id, session_id, event_type, referrer, landing_page, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.SessionID, ev.EventType, ev.Referrer, ev.LandingPage, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append session event")
}
