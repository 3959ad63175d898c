package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apertium/apertium-stats-service/internal/entry"
	"github.com/apertium/apertium-stats-service/internal/entrystore"
)

func TestEntriesCommandListsCachedStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")

	store, err := entrystore.Open(dbPath)
	require.NoError(t, err)

	_, err = store.Insert(context.Background(), entry.Entry{
		Requested: time.Now().UTC(),
		Name:      "apertium-fr-en",
		Revision:  12,
		Path:      "apertium-fr-en.fr-en.dix",
		FileKind:  entry.Bidix,
		StatKind:  entry.StatEntries,
		Value:     "4321",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgBody := fmt.Sprintf("database:\n  path: %s\n", dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o600))

	cmd := NewEntriesCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"apertium-fr-en", "--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "4321")
	assert.Contains(t, out.String(), "bidix")
}

func TestEntriesCommandEmptyCache(t *testing.T) {
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgBody := fmt.Sprintf("database:\n  path: %s\n", filepath.Join(dir, "stats.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o600))

	cmd := NewEntriesCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"apertium-nob", "--config", cfgPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no cached entries")
}
