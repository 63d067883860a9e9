package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/bk-tutor/tutor-support-api/pkg/errors"
)

func errNoRows() error { return sql.ErrNoRows }

func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}
