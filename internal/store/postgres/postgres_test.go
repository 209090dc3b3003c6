package postgres

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://given", DSN(ClientConfig{DSN: " postgres://given "}))

	got := DSN(ClientConfig{Host: "db", User: "bot", Password: "p@ss:word", Database: "audit"})
	assert.Equal(t, "postgres://bot:p%40ss%3Aword@db:5432/audit?sslmode=disable", got)

	got = DSN(ClientConfig{Host: "db", Port: 6543, User: "bot", Database: "audit", SSLMode: "require"})
	assert.Equal(t, "postgres://bot:@db:6543/audit?sslmode=require", got)
}

func TestPending(t *testing.T) {
	files := []string{"migrations/002_b.sql", "migrations/001_a.sql", "migrations/003_c.sql"}
	assert.Equal(t,
		[]string{"migrations/002_b.sql", "migrations/003_c.sql"},
		pending(files, []string{"001_a.sql"}))
	assert.Empty(t, pending(files, []string{"001_a.sql", "002_b.sql", "003_c.sql"}))
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "migrations/001_bot_events.sql")
}
