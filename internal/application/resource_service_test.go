package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/campus-booking/internal/testfixtures"
)

func newResourceService(t *testing.T) (*ResourceService, *testfixtures.MemStore) {
	t.Helper()
	store := testfixtures.NewMemStore()
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("room")
	return NewResourceService(store, ids.NextFunc(), clock.NowFunc(), nil), store
}

func TestCreateResource(t *testing.T) {
	t.Parallel()

	service, _ := newResourceService(t)
	ctx := context.Background()
	admin := Principal{AccountID: "admin-1", IsAdmin: true}

	t.Run("non-admin is refused", func(t *testing.T) {
		t.Parallel()
		_, err := service.CreateResource(ctx, CreateResourceParams{
			Principal: Principal{AccountID: "owner-1"},
			Input:     ResourceInput{Name: "Seminar Room", Capacity: 8},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validation failures accumulate", func(t *testing.T) {
		t.Parallel()
		_, err := service.CreateResource(ctx, CreateResourceParams{
			Principal: admin,
			Input:     ResourceInput{Name: "  ", Capacity: 0, Floor: -1},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "capacity", "floor"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("missing field %q in %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("attributes are normalized and deduplicated", func(t *testing.T) {
		t.Parallel()
		resource, err := service.CreateResource(ctx, CreateResourceParams{
			Principal: admin,
			Input: ResourceInput{
				Name:       "Media Lab",
				Capacity:   6,
				Attributes: []string{" Whiteboard", "PROJECTOR", "projector", ""},
				Building:   " Science Hall ",
				Floor:      3,
			},
		})
		if err != nil {
			t.Fatalf("CreateResource failed: %v", err)
		}
		if len(resource.Attributes) != 2 || resource.Attributes[0] != "whiteboard" || resource.Attributes[1] != "projector" {
			t.Errorf("attributes = %v, want [whiteboard projector]", resource.Attributes)
		}
		if resource.Building != "Science Hall" {
			t.Errorf("building = %q, want trimmed", resource.Building)
		}
	})
}

func TestRetireResource(t *testing.T) {
	t.Parallel()

	service, store := newResourceService(t)
	ctx := context.Background()
	admin := Principal{AccountID: "admin-1", IsAdmin: true}

	created, err := service.CreateResource(ctx, CreateResourceParams{
		Principal: admin,
		Input:     ResourceInput{Name: "Annex Room", Capacity: 4},
	})
	if err != nil {
		t.Fatalf("CreateResource failed: %v", err)
	}

	if err := service.RetireResource(ctx, Principal{AccountID: "owner-1"}, created.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := service.RetireResource(ctx, admin, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := service.RetireResource(ctx, admin, created.ID); err != nil {
		t.Fatalf("RetireResource failed: %v", err)
	}

	// Retired resources drop out of default listings but stay readable.
	record, err := store.GetResource(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetResource failed: %v", err)
	}
	if !record.Retired {
		t.Fatal("resource not marked retired")
	}
	listed, err := service.ListResources(ctx, ListResourcesParams{})
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	for _, resource := range listed {
		if resource.ID == created.ID {
			t.Fatal("retired resource appeared in default listing")
		}
	}
}

func TestListResources_Filter(t *testing.T) {
	t.Parallel()

	service, _ := newResourceService(t)
	ctx := context.Background()
	admin := Principal{AccountID: "admin-1", IsAdmin: true}

	seed := []ResourceInput{
		{Name: "Huddle", Capacity: 4, Building: "Library", Attributes: []string{"whiteboard"}},
		{Name: "Lecture", Capacity: 40, Building: "Main", Attributes: []string{"projector"}},
		{Name: "Studio", Capacity: 10, Building: "Library", Attributes: []string{"whiteboard", "projector"}},
	}
	for _, input := range seed {
		if _, err := service.CreateResource(ctx, CreateResourceParams{Principal: admin, Input: input}); err != nil {
			t.Fatalf("seed %s: %v", input.Name, err)
		}
	}

	got, err := service.ListResources(ctx, ListResourcesParams{
		MinCapacity: 8,
		Building:    "library",
		Attributes:  []string{"projector"},
	})
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Studio" {
		t.Fatalf("expected only Studio, got %v", got)
	}
}
