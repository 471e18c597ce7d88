// Package catalog is the registry of bookable resources. It answers the
// existence and capacity questions the booking path asks, and owns the
// soft-retire rule: retired resources reject new bookings but keep their
// history queryable.
package catalog

import (
	"context"
	"errors"

	"github.com/example/campus-booking/internal/persistence"
)

var (
	// ErrResourceNotFound is returned when the requested resource does not exist.
	ErrResourceNotFound = errors.New("catalog: resource not found")
)

// Registry provides read access to the resource catalog.
type Registry struct {
	resources persistence.ResourceRepository
}

// NewRegistry constructs a Registry over the given repository.
func NewRegistry(resources persistence.ResourceRepository) *Registry {
	return &Registry{resources: resources}
}

// Get returns the resource with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (persistence.Resource, error) {
	resource, err := r.resources.GetResource(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Resource{}, ErrResourceNotFound
		}
		return persistence.Resource{}, err
	}
	return resource, nil
}

// Exists reports whether a resource with the given ID is registered,
// retired or not.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	if errors.Is(err, ErrResourceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CapacityOf returns the capacity of the resource with the given ID.
func (r *Registry) CapacityOf(ctx context.Context, id string) (int, error) {
	resource, err := r.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return resource.Capacity, nil
}

// List returns catalog entries matching the filter.
func (r *Registry) List(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error) {
	return r.resources.ListResources(ctx, filter)
}
