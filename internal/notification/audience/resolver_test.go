package audience

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	commonerrors "loyalty-notify/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var audienceColumns = []string{"beneficiary_id", "id", "token", "platform", "device_id", "created_at", "updated_at"}

func TestResolver_Resolve(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("groups tokens per beneficiary", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryAudience)).WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows(audienceColumns).
				AddRow("ben-a", "sub-1", "ExponentPushToken[a1]", "ios", "dev-1", now, now).
				AddRow("ben-a", "sub-2", "ExponentPushToken[a2]", "android", "dev-2", now, now).
				AddRow("ben-b", "sub-3", "ExponentPushToken[b1]", "ios", "dev-3", now, now))

		recipients, err := NewResolver(db).Resolve(context.Background(), "org-1")
		require.NoError(t, err)
		require.Len(t, recipients, 2)
		assert.Equal(t, "ben-a", recipients[0].BeneficiaryID)
		assert.Len(t, recipients[0].Tokens, 2)
		assert.Equal(t, "ben-b", recipients[1].BeneficiaryID)
		assert.Equal(t, "sub-3", recipients[1].Tokens[0].ID)
		assert.True(t, recipients[1].Tokens[0].IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty audience", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryAudience)).WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows(audienceColumns))

		recipients, err := NewResolver(db).Resolve(context.Background(), "org-1")
		require.NoError(t, err)
		assert.Empty(t, recipients)
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryAudience)).WithArgs("org-1").
			WillReturnError(errors.New("connection refused"))

		_, err = NewResolver(db).Resolve(context.Background(), "org-1")
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeDatabaseQueryFailed))
	})

	t.Run("row error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryAudience)).WithArgs("org-1").
			WillReturnRows(sqlmock.NewRows(audienceColumns).
				AddRow("ben-a", "sub-1", "tok", "ios", "dev-1", now, now).
				RowError(0, errors.New("network blip")))

		_, err = NewResolver(db).Resolve(context.Background(), "org-1")
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeDatabaseQueryFailed))
	})
}
