package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/db"
	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of the scrape and submission flows.
var preparedStatements = map[string]string{
	"get_posting":    `SELECT id, link, platform, title, description, price_info, skills, client_name, client_country, client_rating, payment_verified, featured, language, first_seen_at FROM job_postings WHERE id = $1`,
	"get_credential": `SELECT user_id, platform, login_email, login_secret, session_blob, session_expires_at, active FROM platform_credentials WHERE user_id = $1 AND platform = $2`,
	"save_session":   `UPDATE platform_credentials SET session_blob = $1, session_expires_at = $2 WHERE user_id = $3 AND platform = $4`,
	"has_attempt":    `SELECT EXISTS (SELECT 1 FROM proposal_attempts WHERE user_id = $1 AND posting_id = $2 AND platform = $3)`,
	"insert_attempt": `INSERT INTO proposal_attempts (id, user_id, posting_id, platform, bid_text, outcome, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS job_postings (
	id               TEXT PRIMARY KEY,
	link             TEXT NOT NULL,
	platform         TEXT NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	price_info       TEXT NOT NULL DEFAULT '',
	skills           TEXT[] NOT NULL DEFAULT '{}',
	client_name      TEXT NOT NULL DEFAULT '',
	client_country   TEXT NOT NULL DEFAULT '',
	client_rating    REAL NOT NULL DEFAULT 0,
	payment_verified BOOLEAN NOT NULL DEFAULT false,
	featured         BOOLEAN NOT NULL DEFAULT false,
	language         TEXT NOT NULL DEFAULT 'unknown',
	first_seen_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (link, platform)
);

CREATE INDEX IF NOT EXISTS idx_job_postings_platform ON job_postings(platform);
CREATE INDEX IF NOT EXISTS idx_job_postings_first_seen ON job_postings(first_seen_at DESC);

CREATE TABLE IF NOT EXISTS platform_credentials (
	user_id            TEXT NOT NULL,
	platform           TEXT NOT NULL,
	login_email        TEXT NOT NULL,
	login_secret       TEXT NOT NULL,
	session_blob       BYTEA,
	session_expires_at TIMESTAMPTZ,
	active             BOOLEAN NOT NULL DEFAULT true,
	PRIMARY KEY (user_id, platform)
);

CREATE TABLE IF NOT EXISTS proposal_attempts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	posting_id TEXT NOT NULL REFERENCES job_postings(id),
	platform   TEXT NOT NULL,
	bid_text   TEXT NOT NULL,
	outcome    TEXT NOT NULL DEFAULT 'sent',
	sent_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, posting_id, platform)
);

CREATE TABLE IF NOT EXISTS search_profiles (
	user_id    TEXT PRIMARY KEY,
	profile    TEXT NOT NULL DEFAULT '',
	directives TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recipients (
	id      TEXT PRIMARY KEY,
	handle  TEXT NOT NULL,
	channel TEXT NOT NULL DEFAULT 'whatsapp',
	active  BOOLEAN NOT NULL DEFAULT true
);
`

// Migrate applies the schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// FilterNewPostings returns the postings whose (link, platform) has never
// been stored. Membership is resolved with one bulk lookup by link list, not
// per-record queries.
func (s *PostgresStore) FilterNewPostings(ctx context.Context, platform string, postings []model.JobPosting) ([]model.JobPosting, error) {
	if len(postings) == 0 {
		return nil, nil
	}

	links := make([]string, 0, len(postings))
	for _, p := range postings {
		links = append(links, p.Link)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT link FROM job_postings WHERE platform = $1 AND link = ANY($2)`,
		platform, links,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup seen links")
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, eris.Wrap(err, "postgres: scan seen link")
		}
		seen[link] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate seen links")
	}

	fresh := make([]model.JobPosting, 0, len(postings))
	for _, p := range postings {
		if _, ok := seen[p.Link]; !ok {
			fresh = append(fresh, p)
		}
	}
	return fresh, nil
}

var postingColumns = []string{
	"id", "link", "platform", "title", "description", "price_info", "skills",
	"client_name", "client_country", "client_rating", "payment_verified",
	"featured", "language", "first_seen_at",
}

// SavePostings bulk-inserts postings, skipping rows that fail validation
// (logged, not fatal) and rows whose (link, platform) already exists.
// Returns the number of rows actually inserted.
func (s *PostgresStore) SavePostings(ctx context.Context, postings []model.JobPosting) (int, error) {
	rows := make([][]any, 0, len(postings))
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			zap.L().Warn("store: skipping invalid posting",
				zap.String("link", p.Link),
				zap.String("platform", p.Platform),
				zap.Error(err),
			)
			continue
		}
		rows = append(rows, []any{
			p.ID, p.Link, p.Platform, p.Title, p.Description, p.PriceInfo,
			p.Skills, p.ClientName, p.ClientCountry, p.ClientRating,
			p.PaymentVerified, p.Featured, string(p.Language), p.FirstSeenAt,
		})
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertIgnoreConfig{
		Table:        "job_postings",
		Columns:      postingColumns,
		ConflictKeys: []string{"link", "platform"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save postings")
	}
	return int(n), nil
}

// GetPosting returns a posting by id, or nil when absent.
func (s *PostgresStore) GetPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	var p model.JobPosting
	var lang string
	err := s.pool.QueryRow(ctx,
		`SELECT id, link, platform, title, description, price_info, skills, client_name, client_country, client_rating, payment_verified, featured, language, first_seen_at FROM job_postings WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Link, &p.Platform, &p.Title, &p.Description, &p.PriceInfo,
		&p.Skills, &p.ClientName, &p.ClientCountry, &p.ClientRating,
		&p.PaymentVerified, &p.Featured, &lang, &p.FirstSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get posting")
	}
	p.Language = model.Language(lang)
	return &p, nil
}

// GetCredential returns the credential for (userID, platform), or nil when
// absent or inactive.
func (s *PostgresStore) GetCredential(ctx context.Context, userID, platform string) (*model.PlatformCredential, error) {
	var c model.PlatformCredential
	var blob []byte
	var expires *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, platform, login_email, login_secret, session_blob, session_expires_at, active FROM platform_credentials WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	).Scan(&c.UserID, &c.Platform, &c.LoginEmail, &c.LoginSecret, &blob, &expires, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get credential")
	}
	if !c.Active {
		return nil, nil
	}
	c.SessionBlob = blob
	if expires != nil {
		c.SessionExpiresAt = *expires
	}
	return &c, nil
}

// SaveSession writes the session blob whole with its expiry.
func (s *PostgresStore) SaveSession(ctx context.Context, userID, platform string, blob []byte, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE platform_credentials SET session_blob = $1, session_expires_at = $2 WHERE user_id = $3 AND platform = $4`,
		blob, expiresAt, userID, platform,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: save session")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: no credential row for user %s on %s", userID, platform)
	}
	return nil
}

// HasAttempt reports whether any attempt row exists for the key. Failed
// attempts count too; they occupy the unique constraint, so a retry must be
// refused here rather than collide at insert time.
func (s *PostgresStore) HasAttempt(ctx context.Context, userID, postingID, platform string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM proposal_attempts WHERE user_id = $1 AND posting_id = $2 AND platform = $3)`,
		userID, postingID, platform,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: check attempt")
	}
	return exists, nil
}

// RecordAttempt inserts the attempt. A unique-constraint violation maps to
// faults.ErrDuplicateAttempt so concurrent submissions that raced past
// HasAttempt still resolve to exactly one stored row.
func (s *PostgresStore) RecordAttempt(ctx context.Context, attempt model.ProposalAttempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proposal_attempts (id, user_id, posting_id, platform, bid_text, outcome, sent_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, attempt.UserID, attempt.PostingID, attempt.Platform,
		attempt.BidText, string(attempt.Outcome), attempt.SentAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return faults.ErrDuplicateAttempt
		}
		return eris.Wrap(err, "postgres: record attempt")
	}
	return nil
}

// GetSearchProfile returns the user's profile, or nil when none is stored.
func (s *PostgresStore) GetSearchProfile(ctx context.Context, userID string) (*model.SearchProfile, error) {
	var p model.SearchProfile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, profile, directives FROM search_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Profile, &p.Directives)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get search profile")
	}
	return &p, nil
}

// ListActiveRecipients returns every recipient with the active flag set.
func (s *PostgresStore) ListActiveRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, handle, channel, active FROM recipients WHERE active = true ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recipients")
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.ID, &r.Handle, &r.Channel, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recipient")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRecipient returns one recipient by id, or nil when absent.
func (s *PostgresStore) GetRecipient(ctx context.Context, id string) (*model.Recipient, error) {
	var r model.Recipient
	err := s.pool.QueryRow(ctx,
		`SELECT id, handle, channel, active FROM recipients WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Handle, &r.Channel, &r.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get recipient")
	}
	return &r, nil
}
