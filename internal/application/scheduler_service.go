package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/catalog"
	"github.com/example/campus-booking/internal/events"
	"github.com/example/campus-booking/internal/interval"
	"github.com/example/campus-booking/internal/ledger"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/recurrence"
)

// DefaultBookingHorizon bounds how far into the future a booking may reach.
const DefaultBookingHorizon = 180 * 24 * time.Hour

// ResourceRegistry exposes the catalog lookups the scheduler needs.
type ResourceRegistry interface {
	Get(ctx context.Context, id string) (persistence.Resource, error)
	List(ctx context.Context, filter persistence.ResourceFilter) ([]persistence.Resource, error)
}

// OwnerDirectory exposes account existence checks.
type OwnerDirectory interface {
	GetAccount(ctx context.Context, id string) (persistence.Account, error)
}

// SchedulerService is the single surface the transport layer talks to. It
// validates requests, expands recurrence rules, and delegates conflict-free
// commitment to the ledger.
type SchedulerService struct {
	registry  ResourceRegistry
	owners    OwnerDirectory
	ledger    *ledger.Ledger
	expander  *recurrence.Expander
	publisher events.Publisher
	cache     SlotCache
	horizon   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// SchedulerConfig wires the scheduler's dependencies.
type SchedulerConfig struct {
	Registry  ResourceRegistry
	Owners    OwnerDirectory
	Ledger    *ledger.Ledger
	Expander  *recurrence.Expander
	Publisher events.Publisher
	Cache     SlotCache
	// Horizon defaults to DefaultBookingHorizon when zero.
	Horizon time.Duration
	Now     func() time.Time
	Logger  *slog.Logger
}

// NewSchedulerService constructs a SchedulerService.
func NewSchedulerService(cfg SchedulerConfig) *SchedulerService {
	if cfg.Expander == nil {
		cfg.Expander = recurrence.NewExpander(time.UTC)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoopPublisher{}
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemorySlotCache(0, 0, cfg.Now)
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultBookingHorizon
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SchedulerService{
		registry:  cfg.Registry,
		owners:    cfg.Owners,
		ledger:    cfg.Ledger,
		expander:  cfg.Expander,
		publisher: cfg.Publisher,
		cache:     cfg.Cache,
		horizon:   cfg.Horizon,
		now:       cfg.Now,
		logger:    defaultLogger(cfg.Logger),
	}
}

func (s *SchedulerService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SchedulerService", operation, attrs...)
}

// Book validates and commits a booking request, recurring or not. All
// occurrences commit or none do.
func (s *SchedulerService) Book(ctx context.Context, params CreateBookingParams) (views []BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("SchedulerService is nil")
		return
	}
	input := params.Input

	logger := s.loggerWith(ctx, "Book",
		"resource_id", input.ResourceID,
		"owner_id", params.Principal.AccountID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("bookings", len(views)).InfoContext(ctx, "booking committed")
	}()

	now := s.now().UTC()
	vErr := &ValidationError{}

	if input.ResourceID == "" {
		vErr.add("resource_id", "resource_id is required")
	}
	if input.PartySize < 1 {
		vErr.add("party_size", "party size must be at least 1")
	}

	anchor, ivErr := interval.New(input.Start, input.End)
	switch {
	case ivErr != nil:
		vErr.add("time", "start must be before end")
	case !anchor.Start.After(now):
		vErr.add("time", "booking must start in the future")
	}

	rule, ok := parseRecurrence(input.Recurrence, anchor, vErr)
	if vErr.HasErrors() || !ok {
		err = vErr
		return
	}

	occurrences, expandErr := s.expander.Expand(rule)
	if expandErr != nil {
		if errors.Is(expandErr, recurrence.ErrTooManyOccurrences) {
			err = expandErr
			return
		}
		vErr.add("recurrence", expandErr.Error())
		err = vErr
		return
	}
	// A booking longer than its repeat step would overlap its own series.
	for i := 1; i < len(occurrences); i++ {
		if occurrences[i-1].Overlaps(occurrences[i]) {
			vErr.add("recurrence", "booking duration exceeds the repeat step, occurrences would overlap each other")
			err = vErr
			return
		}
	}
	if last := occurrences[len(occurrences)-1]; last.End.After(now.Add(s.horizon)) {
		vErr.add("time", "booking reaches beyond the scheduling horizon")
		err = vErr
		return
	}

	resource, lookupErr := s.registry.Get(ctx, input.ResourceID)
	if lookupErr != nil {
		if errors.Is(lookupErr, catalog.ErrResourceNotFound) {
			err = ErrNotFound
			return
		}
		err = lookupErr
		return
	}
	if resource.Retired {
		err = ErrResourceRetired
		return
	}
	if input.PartySize > resource.Capacity {
		vErr.add("party_size", fmt.Sprintf("party size exceeds capacity of %d", resource.Capacity))
		err = vErr
		return
	}

	if s.owners != nil {
		if _, ownerErr := s.owners.GetAccount(ctx, params.Principal.AccountID); ownerErr != nil {
			if errors.Is(ownerErr, persistence.ErrNotFound) {
				err = ErrUnauthorized
				return
			}
			err = ownerErr
			return
		}
	}

	bookings, commitErr := s.ledger.Commit(ctx, ledger.CommitParams{
		ResourceID:  input.ResourceID,
		OwnerID:     params.Principal.AccountID,
		PartySize:   input.PartySize,
		Purpose:     strings.TrimSpace(input.Purpose),
		Occurrences: occurrences,
	})
	if commitErr != nil {
		err = commitErr
		return
	}

	s.cache.Invalidate(ctx, input.ResourceID)
	s.publishCommitted(ctx, logger, bookings)

	views = s.withStatus(bookings)
	return
}

// Cancel transitions a booking to cancelled on behalf of the principal.
// Cancelling an already-cancelled booking succeeds with the terminal record.
func (s *SchedulerService) Cancel(ctx context.Context, params CancelBookingParams) (view BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("SchedulerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"booking_id", params.BookingID,
		"requester_id", params.Principal.AccountID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancellation rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking cancelled")
	}()

	booking, cancelErr := s.ledger.Cancel(ctx, params.BookingID, params.Principal.AccountID, params.Principal.IsAdmin)
	if cancelErr != nil {
		err = cancelErr
		return
	}

	s.cache.Invalidate(ctx, booking.ResourceID)
	if booking.CancelledAt != nil {
		if pubErr := s.publisher.PublishBookingCancelled(ctx, events.BookingCancelled{
			BookingID:   booking.ID,
			ResourceID:  booking.ResourceID,
			OwnerID:     booking.OwnerID,
			CancelledAt: *booking.CancelledAt,
		}); pubErr != nil {
			logger.WarnContext(ctx, "cancellation event not published", "error", pubErr)
		}
	}

	view = BookingView{Booking: booking, Status: booking.StatusAt(s.now().UTC())}
	return
}

// Extend moves a booking's end later, guarded by optimistic concurrency.
func (s *SchedulerService) Extend(ctx context.Context, params ExtendBookingParams) (view BookingView, err error) {
	if s == nil {
		err = fmt.Errorf("SchedulerService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Extend",
		"booking_id", params.BookingID,
		"requester_id", params.Principal.AccountID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "extension rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking extended")
	}()

	booking, extendErr := s.ledger.Extend(ctx, params.BookingID, params.NewEnd.UTC(), params.ExpectedVersion, params.Principal.AccountID, params.Principal.IsAdmin)
	if extendErr != nil {
		err = extendErr
		return
	}

	s.cache.Invalidate(ctx, booking.ResourceID)
	view = BookingView{Booking: booking, Status: booking.StatusAt(s.now().UTC())}
	return
}

// GetBooking returns a single booking with derived status. Owners see their
// own bookings; admins see all.
func (s *SchedulerService) GetBooking(ctx context.Context, principal Principal, bookingID string) (BookingView, error) {
	if s == nil {
		return BookingView{}, fmt.Errorf("SchedulerService is nil")
	}

	booking, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ledger.ErrBookingNotFound) {
			return BookingView{}, ErrNotFound
		}
		return BookingView{}, err
	}
	if booking.OwnerID != principal.AccountID && !principal.IsAdmin {
		return BookingView{}, ErrUnauthorized
	}
	return BookingView{Booking: booking, Status: booking.StatusAt(s.now().UTC())}, nil
}

// ListForOwner returns an owner's bookings, cancelled included, with derived
// status. Non-admin principals may only list their own.
func (s *SchedulerService) ListForOwner(ctx context.Context, params ListBookingsParams) ([]BookingView, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulerService is nil")
	}

	ownerID := params.OwnerID
	if ownerID == "" {
		ownerID = params.Principal.AccountID
	}
	if ownerID != params.Principal.AccountID && !params.Principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	bookings, err := s.ledger.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.withStatus(bookings), nil
}

// FreeSlots returns the free gaps of one resource inside the window. Answers
// are cached briefly; any booking change on the resource invalidates them.
func (s *SchedulerService) FreeSlots(ctx context.Context, query AvailabilityQuery) ([]interval.Interval, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulerService is nil")
	}
	if query.ResourceID == "" || query.Window.IsZero() {
		vErr := &ValidationError{}
		if query.ResourceID == "" {
			vErr.add("resource_id", "resource_id is required")
		}
		if query.Window.IsZero() {
			vErr.add("window", "a from/to window is required")
		}
		return nil, vErr
	}

	if _, err := s.registry.Get(ctx, query.ResourceID); err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	key := slotCacheKey(query.ResourceID, query.Window)
	if slots, ok := s.cache.Get(ctx, key); ok {
		return slots, nil
	}

	slots := s.ledger.Index().FreeSlots(query.ResourceID, query.Window)
	s.cache.Store(ctx, key, slots)
	return slots, nil
}

// NextFree returns the earliest gap of at least MinDuration after the given
// instant, bounded by the scheduling horizon.
func (s *SchedulerService) NextFree(ctx context.Context, query NextFreeQuery) (interval.Interval, bool, error) {
	if s == nil {
		return interval.Interval{}, false, fmt.Errorf("SchedulerService is nil")
	}
	vErr := &ValidationError{}
	if query.ResourceID == "" {
		vErr.add("resource_id", "resource_id is required")
	}
	if query.MinDuration <= 0 {
		vErr.add("min_duration", "min_duration must be positive")
	}
	if vErr.HasErrors() {
		return interval.Interval{}, false, vErr
	}

	if _, err := s.registry.Get(ctx, query.ResourceID); err != nil {
		if errors.Is(err, catalog.ErrResourceNotFound) {
			return interval.Interval{}, false, ErrNotFound
		}
		return interval.Interval{}, false, err
	}

	now := s.now().UTC()
	after := query.After.UTC()
	if after.IsZero() {
		after = now
	}
	slot, ok := s.ledger.Index().NextFree(query.ResourceID, after, query.MinDuration, now.Add(s.horizon))
	return slot, ok, nil
}

// SearchAvailability returns resources able to host the party in the window,
// each with its free gaps, ordered by tightest capacity fit.
func (s *SchedulerService) SearchAvailability(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulerService is nil")
	}
	vErr := &ValidationError{}
	if params.Window.IsZero() {
		vErr.add("window", "a from/to window is required")
	}
	if params.PartySize < 1 {
		vErr.add("party_size", "party size must be at least 1")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	resources, err := s.registry.List(ctx, persistence.ResourceFilter{
		MinCapacity: params.PartySize,
		Building:    params.Building,
		Attributes:  params.Attributes,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resources))
	for _, resource := range resources {
		slots := s.ledger.Index().FreeSlots(resource.ID, params.Window)
		if len(slots) == 0 {
			continue
		}
		results = append(results, SearchResult{
			Resource:  toResource(resource),
			FreeSlots: slots,
		})
	}

	// Tightest capacity fit first so small parties land in small rooms.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Resource.Capacity == results[j].Resource.Capacity {
			return results[i].Resource.Name < results[j].Resource.Name
		}
		return results[i].Resource.Capacity < results[j].Resource.Capacity
	})
	return results, nil
}

// Rebuild reloads the availability projection from the ledger's records.
// It runs once at startup before the engine accepts traffic.
func (s *SchedulerService) Rebuild(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("SchedulerService is nil")
	}
	return s.ledger.Rebuild(ctx)
}

func (s *SchedulerService) publishCommitted(ctx context.Context, logger *slog.Logger, bookings []ledger.Booking) {
	occurredAt := s.now().UTC()
	for _, booking := range bookings {
		event := events.BookingCommitted{
			BookingID:  booking.ID,
			ResourceID: booking.ResourceID,
			OwnerID:    booking.OwnerID,
			Start:      booking.Interval.Start,
			End:        booking.Interval.End,
			PartySize:  booking.PartySize,
			SeriesID:   booking.SeriesID,
			OccurredAt: occurredAt,
		}
		if err := s.publisher.PublishBookingCommitted(ctx, event); err != nil {
			logger.WarnContext(ctx, "commit event not published", "booking_id", booking.ID, "error", err)
		}
	}
}

func (s *SchedulerService) withStatus(bookings []ledger.Booking) []BookingView {
	now := s.now().UTC()
	views := make([]BookingView, 0, len(bookings))
	for _, booking := range bookings {
		views = append(views, BookingView{Booking: booking, Status: booking.StatusAt(now)})
	}
	return views
}

func toResource(record persistence.Resource) Resource {
	attributes := make([]string, len(record.Attributes))
	copy(attributes, record.Attributes)
	return Resource{
		ID:         record.ID,
		Name:       record.Name,
		Capacity:   record.Capacity,
		Attributes: attributes,
		Building:   record.Building,
		Floor:      record.Floor,
		Retired:    record.Retired,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
