package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*RecipientRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRecipientRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func recipientColumns() []string {
	return []string{
		"id", "campaign_id", "tenant_id", "phone", "variables", "status",
		"message_id", "error_log", "claimed_at", "created_at", "updated_at",
	}
}

// TestSelectBatch_ClaimsSelectedRows walks the whole selection
// transaction: the ranked candidate query carries the staleness cutoff
// and both limits, the chosen ids are locked, stamped claimed_at, and
// the transaction commits.
func TestSelectBatch_ClaimsSelectedRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM").
		WithArgs(sqlmock.AnyArg(), 5, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)).AddRow(int64(9)))
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(int64(7), int64(9)).
		WillReturnRows(sqlmock.NewRows(recipientColumns()).
			AddRow(int64(7), int64(100), int64(1), "+905551110001", []byte(`["a"]`), "pending", nil, nil, nil, now, now).
			AddRow(int64(9), int64(100), int64(1), "+905551110002", []byte(`["b"]`), "pending", nil, nil, nil, now, now))
	mock.ExpectExec("UPDATE recipients SET claimed_at").
		WithArgs(int64(7), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	batch, err := repo.SelectBatch(context.Background(), 5, 50, 10*time.Minute)
	if err != nil {
		t.Fatalf("SelectBatch returned error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(batch))
	}
	if batch[0].ID != 7 || batch[1].ID != 9 {
		t.Errorf("unexpected batch ids %d, %d", batch[0].ID, batch[1].ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestSelectBatch_EmptyCommitsWithoutLocking verifies a drained table
// ends the transaction without lock or claim statements.
func TestSelectBatch_EmptyCommitsWithoutLocking(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM").
		WithArgs(sqlmock.AnyArg(), 5, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	batch, err := repo.SelectBatch(context.Background(), 5, 50, 10*time.Minute)
	if err != nil {
		t.Fatalf("SelectBatch returned error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d", len(batch))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestSelectBatch_OnlyLockedRowsAreClaimed covers a competing
// dispatcher holding some candidates: SKIP LOCKED returns fewer rows
// than the candidate list and only those get the claim stamp.
func TestSelectBatch_OnlyLockedRowsAreClaimed(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM").
		WithArgs(sqlmock.AnyArg(), 5, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)).AddRow(int64(9)))
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(int64(7), int64(9)).
		WillReturnRows(sqlmock.NewRows(recipientColumns()).
			AddRow(int64(9), int64(100), int64(1), "+905551110002", []byte(`["b"]`), "pending", nil, nil, nil, now, now))
	mock.ExpectExec("UPDATE recipients SET claimed_at").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batch, err := repo.SelectBatch(context.Background(), 5, 50, 10*time.Minute)
	if err != nil {
		t.Fatalf("SelectBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != 9 {
		t.Fatalf("expected only the lockable recipient, got %+v", batch)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkAsSent_RejectsNonPendingRecipient(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE recipients").
		WithArgs("wamid-1", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkAsSent(context.Background(), 5, "wamid-1"); err == nil {
		t.Fatalf("expected error for non-pending recipient")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkAsFailed_RejectsNonPendingRecipient(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE recipients").
		WithArgs("provider timeout", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkAsFailed(context.Background(), 5, "provider timeout"); err == nil {
		t.Fatalf("expected error for non-pending recipient")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMarkAsFailed_PersistsErrorLog(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE recipients").
		WithArgs("(#131026) Message undeliverable", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkAsFailed(context.Background(), 5, "(#131026) Message undeliverable"); err != nil {
		t.Fatalf("MarkAsFailed returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
