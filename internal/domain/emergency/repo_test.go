package emergency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var emergencyColumns = []string{"id", "user_id", "patient_name", "symptoms", "status", "submitted_at", "updated_at"}

func TestRepoPG_ListByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM emergencies WHERE status = \\$1 ORDER BY submitted_at DESC").
		WithArgs(StatusNew).
		WillReturnRows(pgxmock.NewRows(emergencyColumns).
			AddRow(uuid.New(), uuid.New(), "Ravi", "fever", StatusNew, now, now))
	mock.ExpectQuery("SELECT (.+) FROM emergencies ORDER BY submitted_at DESC").
		WillReturnRows(pgxmock.NewRows(emergencyColumns))

	repo := NewRepoPG(mock)
	items, err := repo.List(context.Background(), StatusNew)
	if err != nil || len(items) != 1 {
		t.Fatalf("unexpected result %v %v", items, err)
	}
	items, err = repo.List(context.Background(), "")
	if err != nil || len(items) != 0 {
		t.Fatalf("unexpected result %v %v", items, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepoPG_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM emergencies WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("UPDATE emergencies").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepoPG(mock)
	if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Update(context.Background(), &Emergency{ID: id, Status: StatusResolved}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
