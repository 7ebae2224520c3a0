package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxFixture(t *testing.T) (*TxManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTxManager(db), mock
}

func TestTxManager_WithTx_Commit(t *testing.T) {
	t.Run("successful_transaction_commits", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return nil
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("like_insert_and_counter_bump_commit_together", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO likes").
			WithArgs("post-1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE posts SET likes_count").
			WithArgs("post-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO likes (post_id, user_id) VALUES ($1, $2)", "post-1", "user-1"); err != nil {
				return err
			}
			_, err := tx.Exec("UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1", "post-1")
			return err
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback_runs_before_commit", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectCommit()

		called := false
		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			called = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTxManager_WithTx_Rollback(t *testing.T) {
	t.Run("callback_error_rolls_back", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		callbackErr := errors.New("comment insert failed")
		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return callbackErr
		})

		// The callback's error comes back unwrapped
		require.Error(t, err)
		assert.Equal(t, callbackErr, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed_counter_update_discards_comment_insert", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO comments").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE posts SET comments_count").
			WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback()

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO comments (post_id, user_id, content) VALUES ($1, $2, $3)", "post-1", "user-1", "so cozy"); err != nil {
				return err
			}
			_, err := tx.Exec("UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1", "post-1")
			return err
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "deadlock detected")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback_failure_reports_both_errors", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return errors.New("operation error")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "operation error")
		assert.Contains(t, err.Error(), "rollback failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("panicking_callback_rolls_back_and_repanics", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
				panic("corrupt counter state")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTxManager_WithTx_Boundaries(t *testing.T) {
	t.Run("begin_failure_is_wrapped", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			t.Error("callback must not run when begin fails")
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin transaction")
		assert.Contains(t, err.Error(), "too many connections")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit_failure_is_wrapped", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return nil
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("context_is_passed_to_begin", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.WithTx(ctx, func(tx *sql.Tx) error {
			return nil
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTxManager_WithTx_Reuse(t *testing.T) {
	t.Run("one_failed_transaction_does_not_poison_the_next", func(t *testing.T) {
		tm, mock := newTxFixture(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return errors.New("first attempt failed")
		})
		require.Error(t, err)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err = tm.WithTx(context.Background(), func(tx *sql.Tx) error {
			return nil
		})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
