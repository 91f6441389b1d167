package store

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	req := require.New(t)
	files := fstest.MapFS{
		"migrations/002_more.sql":  {Data: []byte("SELECT 2;")},
		"migrations/001_users.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":     {Data: []byte("notes")},
	}

	pending, err := pendingMigrations(files, map[string]bool{})
	req.NoError(err)
	req.Equal([]string{"001_users.sql", "002_more.sql"}, pending)

	pending, err = pendingMigrations(files, map[string]bool{"001_users.sql": true})
	req.NoError(err)
	req.Equal([]string{"002_more.sql"}, pending)
}

func TestEmbeddedMigrations(t *testing.T) {
	req := require.New(t)
	pending, err := pendingMigrations(migrations, nil)
	req.NoError(err)
	req.Contains(pending, "001_users.sql")
}

func TestDefaultUsername(t *testing.T) {
	req := require.New(t)
	req.Equal("alice", DefaultUsername("  Alice@Example.com "))
	req.Equal("bob", DefaultUsername("bob"))
}
