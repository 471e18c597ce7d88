package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

// ResourceRepository implements persistence.ResourceRepository using SQLite.
// Attributes are stored as a JSON array in a TEXT column.
type ResourceRepository struct {
	pool *ConnectionPool
}

// NewResourceRepository creates a new SQLite resource repository.
func NewResourceRepository(pool *ConnectionPool) *ResourceRepository {
	return &ResourceRepository{pool: pool}
}

const resourceColumns = "id, name, capacity, attributes, building, floor, retired, created_at, updated_at"

// CreateResource inserts a new resource.
func (r *ResourceRepository) CreateResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" || resource.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	attributes, err := encodeAttributes(resource.Attributes)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		resource.ID,
		resource.Name,
		resource.Capacity,
		attributes,
		resource.Building,
		resource.Floor,
		boolToInt(resource.Retired),
		formatTime(resource.CreatedAt),
		formatTime(resource.UpdatedAt),
	)
	return mapError(err)
}

// UpdateResource updates an existing resource.
func (r *ResourceRepository) UpdateResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" || resource.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	attributes, err := encodeAttributes(resource.Attributes)
	if err != nil {
		return err
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE resources
		SET name = ?, capacity = ?, attributes = ?, building = ?, floor = ?, retired = ?, updated_at = ?
		WHERE id = ?
	`,
		resource.Name,
		resource.Capacity,
		attributes,
		resource.Building,
		resource.Floor,
		boolToInt(resource.Retired),
		formatTime(resource.UpdatedAt),
		resource.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

// GetResource retrieves a resource by ID.
func (r *ResourceRepository) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	if id == "" {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+resourceColumns+" FROM resources WHERE id = ?", id)
	return scanResource(row)
}

// ListResources returns resources matching the filter, ordered by name then
// ID. Attribute matching happens in Go after the SQL filter narrows the set.
func (r *ResourceRepository) ListResources(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error) {
	query := "SELECT " + resourceColumns + " FROM resources WHERE 1=1"
	var args []any

	if !filter.IncludeRetired {
		query += " AND retired = 0"
	}
	if filter.MinCapacity > 0 {
		query += " AND capacity >= ?"
		args = append(args, filter.MinCapacity)
	}
	if filter.Building != "" {
		query += " AND building = ? COLLATE NOCASE"
		args = append(args, filter.Building)
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var resources []persistence.Resource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		if !hasAllAttributes(resource.Attributes, filter.Attributes) {
			continue
		}
		resources = append(resources, resource)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return resources, nil
}

// RetireResource soft-retires a resource, keeping its booking history.
func (r *ResourceRepository) RetireResource(ctx context.Context, id string, retiredAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE resources SET retired = 1, updated_at = ? WHERE id = ?",
		formatTime(retiredAt), id)
	if err != nil {
		return mapError(err)
	}
	return requireRowAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (persistence.Resource, error) {
	var resource persistence.Resource
	var attributes string
	var retired int
	var createdAt, updatedAt string

	err := row.Scan(
		&resource.ID,
		&resource.Name,
		&resource.Capacity,
		&attributes,
		&resource.Building,
		&resource.Floor,
		&retired,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Resource{}, mapError(err)
	}

	if err := json.Unmarshal([]byte(attributes), &resource.Attributes); err != nil {
		return persistence.Resource{}, fmt.Errorf("sqlite: decode attributes for %s: %w", resource.ID, err)
	}
	resource.Retired = retired != 0
	if resource.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Resource{}, err
	}
	if resource.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Resource{}, err
	}
	return resource, nil
}

func encodeAttributes(attributes []string) (string, error) {
	if attributes == nil {
		attributes = []string{}
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode attributes: %w", err)
	}
	return string(encoded), nil
}

func hasAllAttributes(have, want []string) bool {
	for _, attribute := range want {
		found := false
		for _, candidate := range have {
			if strings.EqualFold(candidate, attribute) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
