package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	db, err := wrapDatabase(gormDB)
	require.NoError(t, err)
	return db, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats := db.Stats()
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestIngredientStockRepository_GetForUpdate_SQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	branchID := uuid.New()
	ingredientID := uuid.New()
	rowID := uuid.New()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO "ingredient_stocks" .* ON CONFLICT \("branch_id","ingredient_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "ingredient_stocks" WHERE branch_id = \$1 AND ingredient_id = \$2 ORDER BY .* LIMIT \$3 FOR UPDATE`).
		WithArgs(branchID, ingredientID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "branch_id", "ingredient_id", "quantity", "unit", "average_cost_usd", "movement_seq", "created_at", "updated_at"}).
			AddRow(rowID, branchID, ingredientID, "12.5000", "kg", "0", 3, at, at))

	repo := NewGormIngredientStockRepository(db.DB)
	row, err := repo.GetForUpdate(context.Background(), branchID, ingredientID, "kg", at)
	require.NoError(t, err)

	assert.Equal(t, rowID, row.ID)
	assert.True(t, decimal.NewFromFloat(12.5).Equal(row.Quantity))
	assert.Equal(t, int64(3), row.MovementSeq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"wrapped deadlock", errors.Join(errors.New("commit"), &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"domain error", shared.ErrInsufficientStock, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func touchStock(ctx context.Context, repos txn.Repositories) error {
	s := &stock.IngredientStock{ID: uuid.New(), UpdatedAt: time.Now()}
	return repos.IngredientStocks().Update(ctx, s)
}

func TestGormTransactionScope_RetriesOutermostOnly(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ingredient_stocks"`).WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ingredient_stocks"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	scope := NewGormTransactionScope(db.DB, WithRetry(RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}))

	attempts := 0
	err := scope.Execute(context.Background(), func(ctx context.Context, repos txn.Repositories) error {
		attempts++
		// the nested scope joins the outer transaction: no second BEGIN
		return scope.Execute(ctx, touchStock)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_DomainErrorsAreNotRetried(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	scope := NewGormTransactionScope(db.DB, WithRetry(RetryConfig{MaxAttempts: 5, Backoff: time.Millisecond}))

	attempts := 0
	err := scope.Execute(context.Background(), func(ctx context.Context, repos txn.Repositories) error {
		attempts++
		return shared.ErrInsufficientStock
	})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_GivesUpAfterMaxAttempts(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "ingredient_stocks"`).WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	scope := NewGormTransactionScope(db.DB, WithRetry(RetryConfig{MaxAttempts: 2, Backoff: time.Millisecond}))
	err := scope.Execute(context.Background(), touchStock)

	assert.True(t, IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
