package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"attendance-service/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequiresDSN(t *testing.T) {
	err := Run("", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestRunRejectsDirection(t *testing.T) {
	for _, dir := range []string{"", "UP", "sideways"} {
		err := Run("postgres://localhost/attendance", dir)
		require.Error(t, err, dir)
		assert.Contains(t, err.Error(), "direction")
	}
}

func TestMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(db.MigrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := 0, 0
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups++
		case strings.HasSuffix(n, ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitCreatesLiveSessionIndex(t *testing.T) {
	raw, err := fs.ReadFile(db.MigrationFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "WHERE exclusive AND status IN ('active', 'suspect')")
}
