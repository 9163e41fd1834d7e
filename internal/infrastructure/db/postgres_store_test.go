package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	store := NewPostgresStore(sqlDB)
	ctx := context.Background()

	t.Run("Migrate", func(t *testing.T) {
		mock.ExpectExec(createKVTable).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.NoError(t, store.Migrate(ctx))
	})

	t.Run("Load existing", func(t *testing.T) {
		mock.ExpectQuery(selectKV).WithArgs(FavoritesKey).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`["USD/EUR"]`)))

		value, err := store.Load(ctx, FavoritesKey)
		require.NoError(t, err)
		assert.Equal(t, `["USD/EUR"]`, string(value))
	})

	t.Run("Load missing", func(t *testing.T) {
		mock.ExpectQuery(selectKV).WithArgs(HistoryKey).
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		_, err := store.Load(ctx, HistoryKey)
		assert.True(t, errors.Is(err, entity.ErrNotFound))
	})

	t.Run("Save upserts", func(t *testing.T) {
		mock.ExpectExec(upsertKV).WithArgs(HistoryKey, []byte(`[]`)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Save(ctx, HistoryKey, []byte(`[]`)))
	})

	t.Run("Save error", func(t *testing.T) {
		mock.ExpectExec(upsertKV).WithArgs(HistoryKey, []byte(`[]`)).
			WillReturnError(errors.New("connection reset"))

		err := store.Save(ctx, HistoryKey, []byte(`[]`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save conversionHistory")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
