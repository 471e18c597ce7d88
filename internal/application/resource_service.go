package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

// ResourceService orchestrates validation and persistence for catalog
// administration. Mutations are admin-only.
type ResourceService struct {
	resources   persistence.ResourceRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewResourceService wires dependencies for resource administration.
func NewResourceService(resources persistence.ResourceRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ResourceService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ResourceService{
		resources:   resources,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ResourceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ResourceService", operation, attrs...)
}

// CreateResource registers a new bookable resource.
func (s *ResourceService) CreateResource(ctx context.Context, params CreateResourceParams) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateResource", "name", params.Input.Name)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "resource creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("resource_id", resource.ID).InfoContext(ctx, "resource created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	validateResourceCore(params.Input, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	record := persistence.Resource{
		ID:         s.idGenerator(),
		Name:       strings.TrimSpace(params.Input.Name),
		Capacity:   params.Input.Capacity,
		Attributes: normalizeAttributes(params.Input.Attributes),
		Building:   strings.TrimSpace(params.Input.Building),
		Floor:      params.Input.Floor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err = s.resources.CreateResource(ctx, record); err != nil {
		err = mapResourceRepoError(err)
		return
	}

	resource = toResource(record)
	return
}

// UpdateResource updates an existing resource's catalog entry.
func (s *ResourceService) UpdateResource(ctx context.Context, params UpdateResourceParams) (resource Resource, err error) {
	if s == nil {
		err = fmt.Errorf("ResourceService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateResource", "resource_id", params.ResourceID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "resource update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "resource updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.resources.GetResource(ctx, params.ResourceID)
	if getErr != nil {
		err = mapResourceRepoError(getErr)
		return
	}

	vErr := &ValidationError{}
	validateResourceCore(params.Input, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(params.Input.Name)
	updated.Capacity = params.Input.Capacity
	updated.Attributes = normalizeAttributes(params.Input.Attributes)
	updated.Building = strings.TrimSpace(params.Input.Building)
	updated.Floor = params.Input.Floor
	updated.UpdatedAt = s.now().UTC()

	if err = s.resources.UpdateResource(ctx, updated); err != nil {
		err = mapResourceRepoError(err)
		return
	}

	resource = toResource(updated)
	return
}

// RetireResource soft-retires a resource. Its booking history remains
// queryable but new bookings are rejected.
func (s *ResourceService) RetireResource(ctx context.Context, principal Principal, resourceID string) error {
	if s == nil {
		return fmt.Errorf("ResourceService is nil")
	}

	logger := s.loggerWith(ctx, "RetireResource", "resource_id", resourceID)

	if !principal.IsAdmin {
		logger.ErrorContext(ctx, "resource retire refused", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
		return ErrUnauthorized
	}

	if err := s.resources.RetireResource(ctx, resourceID, s.now().UTC()); err != nil {
		mapped := mapResourceRepoError(err)
		logger.ErrorContext(ctx, "resource retire failed", "error", mapped, "error_kind", ErrorKind(mapped))
		return mapped
	}

	logger.InfoContext(ctx, "resource retired")
	return nil
}

// GetResource returns a single catalog entry.
func (s *ResourceService) GetResource(ctx context.Context, resourceID string) (Resource, error) {
	if s == nil {
		return Resource{}, fmt.Errorf("ResourceService is nil")
	}
	record, err := s.resources.GetResource(ctx, resourceID)
	if err != nil {
		return Resource{}, mapResourceRepoError(err)
	}
	return toResource(record), nil
}

// ListResources enumerates catalog entries matching the filter.
func (s *ResourceService) ListResources(ctx context.Context, params ListResourcesParams) ([]Resource, error) {
	if s == nil {
		return nil, fmt.Errorf("ResourceService is nil")
	}
	records, err := s.resources.ListResources(ctx, persistence.ResourceFilter{
		MinCapacity:    params.MinCapacity,
		Building:       params.Building,
		Attributes:     params.Attributes,
		IncludeRetired: params.IncludeRetired,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(records))
	for _, record := range records {
		out = append(out, toResource(record))
	}
	return out, nil
}

func validateResourceCore(input ResourceInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if input.Capacity < 1 {
		vErr.add("capacity", "capacity must be at least 1")
	}
	if input.Floor < 0 {
		vErr.add("floor", "floor cannot be negative")
	}
}

func normalizeAttributes(attributes []string) []string {
	seen := make(map[string]struct{}, len(attributes))
	out := make([]string, 0, len(attributes))
	for _, attribute := range attributes {
		normalized := strings.ToLower(strings.TrimSpace(attribute))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func mapResourceRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}
