package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/phrazzld/renaissance/internal/domain"
	"github.com/phrazzld/renaissance/internal/store"
)

// catalogFile is the TOML layout of a catalog:
//
//	[[axe]]
//	id = "greetings"
//	name = "Greetings"
//	customizable = false
//	phrases = ["good morning", "good evening", "good night"]
type catalogFile struct {
	Axes []catalogAxe `toml:"axe"`
}

type catalogAxe struct {
	ID           string   `toml:"id"`
	Name         string   `toml:"name"`
	Customizable bool     `toml:"customizable"`
	Phrases      []string `toml:"phrases"`
}

// loadCatalog reads and validates a catalog file.
func loadCatalog(path string) ([]*domain.Axe, error) {
	var file catalogFile
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return buildCatalog(file, meta)
}

// parseCatalog is loadCatalog over an in-memory document.
func parseCatalog(data string) ([]*domain.Axe, error) {
	var file catalogFile
	meta, err := toml.Decode(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return buildCatalog(file, meta)
}

func buildCatalog(file catalogFile, meta toml.MetaData) ([]*domain.Axe, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown catalog key %q", undecoded[0].String())
	}
	if len(file.Axes) == 0 {
		return nil, fmt.Errorf("catalog defines no axes")
	}

	seen := make(map[string]bool, len(file.Axes))
	axes := make([]*domain.Axe, 0, len(file.Axes))
	for i, a := range file.Axes {
		if seen[a.ID] {
			return nil, fmt.Errorf("axe %d: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true

		axe, err := domain.NewAxe(a.ID, a.Name, a.Customizable, a.Phrases)
		if err != nil {
			return nil, fmt.Errorf("axe %d (%s): %w", i, a.ID, err)
		}
		axes = append(axes, axe)
	}
	return axes, nil
}

// seedCatalog upserts every axe in one transaction.
func seedCatalog(ctx context.Context, uow store.UnitOfWork, axes []*domain.Axe, log *slog.Logger) (int, error) {
	err := uow.InTx(ctx, func(ctx context.Context, tx store.Stores) error {
		for _, axe := range axes {
			if err := tx.Axes.Upsert(ctx, axe); err != nil {
				return fmt.Errorf("failed to upsert axe %s: %w", axe.ID, err)
			}
			log.Debug("axe seeded",
				slog.String("axe_id", axe.ID),
				slog.Int("phrases", len(axe.Phrases)))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info("catalog seeded", slog.Int("axes", len(axes)))
	return len(axes), nil
}
