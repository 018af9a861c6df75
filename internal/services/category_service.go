package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/storage"
)

// CategoryService manages expense and income categories.
type CategoryService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewCategoryService(storage *storage.SQLiteRepository, b *bus.Bus) *CategoryService {
	return &CategoryService{storage: storage, bus: b}
}

func (s *CategoryService) CreateCategory(ctx context.Context, actor auth.Identity, c core.Category) (core.Category, error) {
	if !actor.Role.IsAdmin() {
		return core.Category{}, core.ErrForbidden
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.storage.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.bus.Notify(ctx, bus.CategoriesChanged, KindCategory, created.ID)
	return created, nil
}

func (s *CategoryService) UpdateCategory(ctx context.Context, actor auth.Identity, c core.Category) (core.Category, error) {
	if !actor.Role.IsAdmin() {
		return core.Category{}, core.ErrForbidden
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	updated, err := s.storage.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.bus.Notify(ctx, bus.CategoriesChanged, KindCategory, updated.ID)
	return updated, nil
}

// DeleteCategory removes a category no expense or income refers to.
func (s *CategoryService) DeleteCategory(ctx context.Context, actor auth.Identity, id int64) error {
	if !actor.Role.IsAdmin() {
		return core.ErrForbidden
	}
	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.bus.Notify(ctx, bus.CategoriesChanged, KindCategory, id)
	return nil
}

// ListCategories lists categories of kind, or all of them when kind is empty.
func (s *CategoryService) ListCategories(ctx context.Context, kind core.CategoryKind) ([]core.Category, error) {
	if kind != "" && !kind.Valid() {
		return nil, &core.FieldError{Field: "kind", Err: core.ErrInvalidKind}
	}
	return s.storage.ListCategories(ctx, kind)
}

// SearchCategories returns the categories whose name fuzzily matches term,
// closest first. An empty term lists everything.
func (s *CategoryService) SearchCategories(ctx context.Context, term string, kind core.CategoryKind) ([]core.Category, error) {
	all, err := s.ListCategories(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("search categories: %w", err)
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return all, nil
	}
	return rankCategories(term, all), nil
}

func rankCategories(term string, categories []core.Category) []core.Category {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(term, names)
	sort.Stable(ranks)

	out := make([]core.Category, len(ranks))
	for i, r := range ranks {
		out[i] = categories[r.OriginalIndex]
	}
	return out
}

// VendorService manages the vendor list shown on expense forms.
type VendorService struct {
	storage *storage.SQLiteRepository
	bus     *bus.Bus
}

func NewVendorService(storage *storage.SQLiteRepository, b *bus.Bus) *VendorService {
	return &VendorService{storage: storage, bus: b}
}

func (s *VendorService) CreateVendor(ctx context.Context, actor auth.Identity, v core.Vendor) (core.Vendor, error) {
	if !actor.Role.IsAdmin() {
		return core.Vendor{}, core.ErrForbidden
	}
	v.Name = strings.TrimSpace(v.Name)
	if err := v.Validate(); err != nil {
		return core.Vendor{}, err
	}
	created, err := s.storage.CreateVendor(ctx, v)
	if err != nil {
		return core.Vendor{}, err
	}
	s.bus.Notify(ctx, bus.DataMutated, KindVendor, created.ID)
	return created, nil
}

func (s *VendorService) ListVendors(ctx context.Context) ([]core.Vendor, error) {
	return s.storage.ListVendors(ctx)
}
