package storage

import (
	"context"
)

const createUser = `-- name: CreateUser :one
INSERT INTO users (name, email, role, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, name, email, role, password_hash, created_at`

type CreateUserParams struct {
	Name         string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Name, arg.Email, arg.Role, arg.PasswordHash, arg.CreatedAt)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUser = `-- name: GetUser :one
SELECT id, name, email, role, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, getUser, id).
		Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT id, name, email, role, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).
		Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.PasswordHash, &i.CreatedAt)
	return i, err
}

const listUsers = `-- name: ListUsers :many
SELECT id, name, email, role, password_hash, created_at FROM users ORDER BY name, id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		var i User
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.PasswordHash, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, kind, icon, color) VALUES (?, ?, ?, ?)
RETURNING id, name, kind, icon, color`

type CreateCategoryParams struct {
	Name  string
	Kind  string
	Icon  string
	Color string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, createCategory, arg.Name, arg.Kind, arg.Icon, arg.Color).
		Scan(&i.ID, &i.Name, &i.Kind, &i.Icon, &i.Color)
	return i, err
}

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories SET name = ?, kind = ?, icon = ?, color = ? WHERE id = ?
RETURNING id, name, kind, icon, color`

type UpdateCategoryParams struct {
	Name  string
	Kind  string
	Icon  string
	Color string
	ID    int64
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, updateCategory, arg.Name, arg.Kind, arg.Icon, arg.Color, arg.ID).
		Scan(&i.ID, &i.Name, &i.Kind, &i.Icon, &i.Color)
	return i, err
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getCategory = `-- name: GetCategory :one
SELECT id, name, kind, icon, color FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, getCategory, id).Scan(&i.ID, &i.Name, &i.Kind, &i.Icon, &i.Color)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, name, kind, icon, color FROM categories
WHERE (?1 = '' OR kind = ?1)
ORDER BY kind, name`

func (q *Queries) ListCategories(ctx context.Context, kind string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Kind, &i.Icon, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countCategories = `-- name: CountCategories :one
SELECT COUNT(*) FROM categories`

func (q *Queries) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCategories).Scan(&count)
	return count, err
}

const categoryInUse = `-- name: CategoryInUse :one
SELECT EXISTS (SELECT 1 FROM expenses WHERE category_id = ?1)
    OR EXISTS (SELECT 1 FROM incomes WHERE category_id = ?1)`

func (q *Queries) CategoryInUse(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := q.db.QueryRowContext(ctx, categoryInUse, id).Scan(&used)
	return used, err
}

const createVendor = `-- name: CreateVendor :one
INSERT INTO vendors (name) VALUES (?) RETURNING id, name`

func (q *Queries) CreateVendor(ctx context.Context, name string) (Vendor, error) {
	var i Vendor
	err := q.db.QueryRowContext(ctx, createVendor, name).Scan(&i.ID, &i.Name)
	return i, err
}

const listVendors = `-- name: ListVendors :many
SELECT id, name FROM vendors ORDER BY name`

func (q *Queries) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := q.db.QueryContext(ctx, listVendors)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Vendor
	for rows.Next() {
		var i Vendor
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
