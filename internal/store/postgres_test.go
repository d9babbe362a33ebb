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

	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/internal/model"
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

func TestPostgresStore_FilterNewPostings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	postings := []model.JobPosting{
		{Link: "https://w/job/a", Platform: "workana", Title: "A"},
		{Link: "https://w/job/b", Platform: "workana", Title: "B"},
		{Link: "https://w/job/c", Platform: "workana", Title: "C"},
	}

	mock.ExpectQuery(`SELECT link FROM job_postings WHERE platform = \$1 AND link = ANY\(\$2\)`).
		WithArgs("workana", []string{"https://w/job/a", "https://w/job/b", "https://w/job/c"}).
		WillReturnRows(pgxmock.NewRows([]string{"link"}).AddRow("https://w/job/b"))

	fresh, err := s.FilterNewPostings(context.Background(), "workana", postings)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "https://w/job/a", fresh[0].Link)
	assert.Equal(t, "https://w/job/c", fresh[1].Link)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FilterNewPostings_EmptyBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	fresh, err := s.FilterNewPostings(context.Background(), "workana", nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPosting_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM job_postings WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetPosting(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCredential(t *testing.T) {
	t.Run("inactive row is invisible", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)

		mock.ExpectQuery(`SELECT .+ FROM platform_credentials`).
			WithArgs("u1", "workana").
			WillReturnRows(pgxmock.NewRows(
				[]string{"user_id", "platform", "login_email", "login_secret", "session_blob", "session_expires_at", "active"},
			).AddRow("u1", "workana", "a@b.c", "s3cret", []byte(nil), (*time.Time)(nil), false))

		got, err := s.GetCredential(context.Background(), "u1", "workana")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent row returns nil", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)

		mock.ExpectQuery(`SELECT .+ FROM platform_credentials`).
			WithArgs("ghost", "workana").
			WillReturnError(pgx.ErrNoRows)

		got, err := s.GetCredential(context.Background(), "ghost", "workana")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_SaveSession_NoCredentialRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE platform_credentials SET session_blob`).
		WithArgs([]byte("{}"), pgxmock.AnyArg(), "ghost", "workana").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveSession(context.Background(), "ghost", "workana", []byte("{}"), time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAttempt_DuplicateMapsToSentinel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO proposal_attempts`).
		WithArgs("a1", "u1", "p1", "workana", "hello", "sent", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "proposal_attempts_user_id_posting_id_platform_key"})

	err := s.RecordAttempt(context.Background(), model.ProposalAttempt{
		ID: "a1", UserID: "u1", PostingID: "p1", Platform: "workana",
		BidText: "hello", Outcome: model.OutcomeSent, SentAt: time.Now(),
	})
	assert.ErrorIs(t, err, faults.ErrDuplicateAttempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_HasAttempt(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Any outcome must match; a failed row still occupies the unique key.
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM proposal_attempts WHERE user_id = \$1 AND posting_id = \$2 AND platform = \$3\)`).
		WithArgs("u1", "p1", "workana").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	has, err := s.HasAttempt(context.Background(), "u1", "p1", "workana")
	require.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActiveRecipients(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, handle, channel, active FROM recipients WHERE active = true`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "handle", "channel", "active"}).
			AddRow("r1", "+549110000001", "relay", true).
			AddRow("r2", "+549110000002", "relay", true))

	out, err := s.ListActiveRecipients(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "r1", out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
