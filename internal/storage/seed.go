package storage

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"cassa/internal/core"
)

//go:embed seed/categories.yaml
var categorySeed []byte

type seedCategory struct {
	Name  string `yaml:"name"`
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

type seedFile struct {
	Expense []seedCategory `yaml:"expense"`
	Income  []seedCategory `yaml:"income"`
}

// ParseCategorySeed decodes a category seed document.
func ParseCategorySeed(data []byte) ([]core.Category, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category seed: %w", err)
	}

	var cats []core.Category
	add := func(kind core.CategoryKind, items []seedCategory) error {
		for _, it := range items {
			c := core.Category{Name: it.Name, Kind: kind, Icon: it.Icon, Color: it.Color}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("seed category %q: %w", it.Name, err)
			}
			cats = append(cats, c)
		}
		return nil
	}
	if err := add(core.KindExpense, f.Expense); err != nil {
		return nil, err
	}
	if err := add(core.KindIncome, f.Income); err != nil {
		return nil, err
	}
	return cats, nil
}

// SeedCategories loads the embedded categories when the table is empty and
// returns how many were inserted.
func (r *SQLiteRepository) SeedCategories(ctx context.Context) (int, error) {
	count, err := r.queries.CountCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	cats, err := ParseCategorySeed(categorySeed)
	if err != nil {
		return 0, err
	}

	err = r.inTx(ctx, func(q *Queries) error {
		for _, c := range cats {
			if _, err := q.CreateCategory(ctx, CreateCategoryParams{
				Name: c.Name, Kind: string(c.Kind), Icon: c.Icon, Color: c.Color,
			}); err != nil {
				return fmt.Errorf("insert seed category %q: %w", c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Seeded categories", "count", len(cats))
	return len(cats), nil
}
