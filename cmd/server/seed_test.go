package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
[[axe]]
id = "greetings"
name = "Greetings"
phrases = ["good morning", "good evening", "good night"]

[[axe]]
id = "travel"
name = "Travel"
customizable = true
phrases = ["where is the station", "one ticket please"]
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCatalog(t *testing.T) {
	axes, err := parseCatalog(sampleCatalog)
	require.NoError(t, err)
	require.Len(t, axes, 2)

	assert.Equal(t, "greetings", axes[0].ID)
	assert.False(t, axes[0].Customizable)
	assert.Equal(t, []string{"good morning", "good evening", "good night"}, axes[0].PhraseTexts())
	assert.Equal(t, domain.PhraseID("greetings", 1), axes[0].Phrases[1].ID)

	assert.Equal(t, "travel", axes[1].ID)
	assert.True(t, axes[1].Customizable)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `[[axe]` + "\n"},
		{"empty", ``},
		{"unknown key", "[[axe]]\nid = \"a\"\nname = \"A\"\nphrases = [\"x\"]\ncolour = \"red\"\n"},
		{"duplicate id", "[[axe]]\nid = \"a\"\nname = \"A\"\nphrases = [\"x\"]\n[[axe]]\nid = \"a\"\nname = \"B\"\nphrases = [\"y\"]\n"},
		{"no phrases", "[[axe]]\nid = \"a\"\nname = \"A\"\n"},
		{"blank phrase", "[[axe]]\nid = \"a\"\nname = \"A\"\nphrases = [\"x\", \"  \"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	axes, err := loadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, axes, 2)

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	axes, err := parseCatalog(sampleCatalog)
	require.NoError(t, err)

	t.Run("upserts every axe", func(t *testing.T) {
		mem := testutils.NewMemStore()
		n, err := seedCatalog(ctx, mem, axes, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := mem.Stores().Axes.Get(ctx, "travel")
		require.NoError(t, err)
		assert.Equal(t, "Travel", got.Name)
		assert.Len(t, got.Phrases, 2)
	})

	t.Run("reseeding is idempotent", func(t *testing.T) {
		mem := testutils.NewMemStore()
		_, err := seedCatalog(ctx, mem, axes, discardLogger())
		require.NoError(t, err)
		_, err = seedCatalog(ctx, mem, axes, discardLogger())
		require.NoError(t, err)

		all, err := mem.Stores().Axes.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("failed commit writes nothing", func(t *testing.T) {
		mem := testutils.NewMemStore()
		mem.FailOn(testutils.FaultCommit, errors.New("connection reset"), 1)

		_, err := seedCatalog(ctx, mem, axes, discardLogger())
		require.Error(t, err)

		all, err := mem.Stores().Axes.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
