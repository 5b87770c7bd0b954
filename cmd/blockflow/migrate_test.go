package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_SQLite(t *testing.T) {
	url := "file:" + filepath.Join(t.TempDir(), "blockflow.db")
	flags := []string{"--db-type", "sqlite", "--db-url", url}
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, migrate(ctx, "up", flags, &out))

	out.Reset()
	require.NoError(t, migrate(ctx, "status", flags, &out))
	assert.Contains(t, out.String(), "create_workflow_versions")
	assert.Contains(t, out.String(), "Pending: 0")

	out.Reset()
	require.NoError(t, migrate(ctx, "steps", append(flags, "--", "-1"), &out))
	assert.Contains(t, out.String(), "Current version: 1")

	assert.Error(t, migrate(ctx, "sideways", flags, &out))
}

func TestMigrate_BadFlags(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, migrate(context.Background(), "up", []string{"--db-type", "oracle", "--db-url", "x"}, &out))
	assert.Error(t, migrate(context.Background(), "up", []string{"--nope"}, &out))
}
