package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite for single-host
// installs that don't want to run Postgres.
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
CREATE TABLE IF NOT EXISTS job_postings (
	id               TEXT PRIMARY KEY,
	link             TEXT NOT NULL,
	platform         TEXT NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	price_info       TEXT NOT NULL DEFAULT '',
	skills           TEXT NOT NULL DEFAULT '[]',
	client_name      TEXT NOT NULL DEFAULT '',
	client_country   TEXT NOT NULL DEFAULT '',
	client_rating    REAL NOT NULL DEFAULT 0,
	payment_verified INTEGER NOT NULL DEFAULT 0,
	featured         INTEGER NOT NULL DEFAULT 0,
	language         TEXT NOT NULL DEFAULT 'unknown',
	first_seen_at    DATETIME NOT NULL,
	UNIQUE (link, platform)
);

CREATE INDEX IF NOT EXISTS idx_job_postings_platform ON job_postings(platform);

CREATE TABLE IF NOT EXISTS platform_credentials (
	user_id            TEXT NOT NULL,
	platform           TEXT NOT NULL,
	login_email        TEXT NOT NULL,
	login_secret       TEXT NOT NULL,
	session_blob       BLOB,
	session_expires_at DATETIME,
	active             INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (user_id, platform)
);

CREATE TABLE IF NOT EXISTS proposal_attempts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	posting_id TEXT NOT NULL REFERENCES job_postings(id),
	platform   TEXT NOT NULL,
	bid_text   TEXT NOT NULL,
	outcome    TEXT NOT NULL DEFAULT 'sent',
	sent_at    DATETIME NOT NULL,
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
	active  INTEGER NOT NULL DEFAULT 1
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FilterNewPostings(ctx context.Context, platform string, postings []model.JobPosting) ([]model.JobPosting, error) {
	if len(postings) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(postings))
	args := make([]any, 0, len(postings)+1)
	args = append(args, platform)
	for _, p := range postings {
		placeholders = append(placeholders, "?")
		args = append(args, p.Link)
	}

	query := `SELECT link FROM job_postings WHERE platform = ? AND link IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup seen links")
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan seen link")
		}
		seen[link] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate seen links")
	}

	fresh := make([]model.JobPosting, 0, len(postings))
	for _, p := range postings {
		if _, ok := seen[p.Link]; !ok {
			fresh = append(fresh, p)
		}
	}
	return fresh, nil
}

func (s *SQLiteStore) SavePostings(ctx context.Context, postings []model.JobPosting) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO job_postings (id, link, platform, title, description, price_info, skills, client_name, client_country, client_rating, payment_verified, featured, language, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range postings {
		if err := p.Validate(); err != nil {
			zap.L().Warn("store: skipping invalid posting",
				zap.String("link", p.Link),
				zap.String("platform", p.Platform),
				zap.Error(err),
			)
			continue
		}
		skills, err := json.Marshal(p.Skills)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal skills")
		}
		res, err := stmt.ExecContext(ctx,
			p.ID, p.Link, p.Platform, p.Title, p.Description, p.PriceInfo,
			string(skills), p.ClientName, p.ClientCountry, p.ClientRating,
			p.PaymentVerified, p.Featured, string(p.Language), p.FirstSeenAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert posting")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetPosting(ctx context.Context, id string) (*model.JobPosting, error) {
	var p model.JobPosting
	var skills, lang string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, link, platform, title, description, price_info, skills, client_name, client_country, client_rating, payment_verified, featured, language, first_seen_at FROM job_postings WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Link, &p.Platform, &p.Title, &p.Description, &p.PriceInfo,
		&skills, &p.ClientName, &p.ClientCountry, &p.ClientRating,
		&p.PaymentVerified, &p.Featured, &lang, &p.FirstSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get posting")
	}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal skills")
	}
	p.Language = model.Language(lang)
	return &p, nil
}

func (s *SQLiteStore) GetCredential(ctx context.Context, userID, platform string) (*model.PlatformCredential, error) {
	var c model.PlatformCredential
	var blob []byte
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, platform, login_email, login_secret, session_blob, session_expires_at, active FROM platform_credentials WHERE user_id = ? AND platform = ?`,
		userID, platform,
	).Scan(&c.UserID, &c.Platform, &c.LoginEmail, &c.LoginSecret, &blob, &expires, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get credential")
	}
	if !c.Active {
		return nil, nil
	}
	c.SessionBlob = blob
	if expires.Valid {
		c.SessionExpiresAt = expires.Time
	}
	return &c, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, userID, platform string, blob []byte, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE platform_credentials SET session_blob = ?, session_expires_at = ? WHERE user_id = ? AND platform = ?`,
		blob, expiresAt.UTC(), userID, platform,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: save session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: no credential row for user %s on %s", userID, platform)
	}
	return nil
}

func (s *SQLiteStore) HasAttempt(ctx context.Context, userID, postingID, platform string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM proposal_attempts WHERE user_id = ? AND posting_id = ? AND platform = ?)`,
		userID, postingID, platform,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check attempt")
	}
	return exists, nil
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, attempt model.ProposalAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proposal_attempts (id, user_id, posting_id, platform, bid_text, outcome, sent_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.UserID, attempt.PostingID, attempt.Platform,
		attempt.BidText, string(attempt.Outcome), attempt.SentAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return faults.ErrDuplicateAttempt
		}
		return eris.Wrap(err, "sqlite: record attempt")
	}
	return nil
}

func (s *SQLiteStore) GetSearchProfile(ctx context.Context, userID string) (*model.SearchProfile, error) {
	var p model.SearchProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, profile, directives FROM search_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.Profile, &p.Directives)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get search profile")
	}
	return &p, nil
}

func (s *SQLiteStore) ListActiveRecipients(ctx context.Context) ([]model.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, handle, channel, active FROM recipients WHERE active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recipients")
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.ID, &r.Handle, &r.Channel, &r.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recipient")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetRecipient(ctx context.Context, id string) (*model.Recipient, error) {
	var r model.Recipient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, handle, channel, active FROM recipients WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.Handle, &r.Channel, &r.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get recipient")
	}
	return &r, nil
}
