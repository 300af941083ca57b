package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/geospatial"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

const (
	minCapacity    = 2
	maxCapacity    = 100
	nearbyCacheTTL = 120
	completeBatch  = 100
)

// EventService handles sports meetups and participation.
type EventService struct {
	events     ports.EventRepository
	profiles   ports.ProfileRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	exec       *resilience.Executor
	logger     *slog.Logger
	now        func() time.Time
	onFallback func(op string, err error)
}

// NewEventService creates a new EventService. cache and publisher may be nil.
func NewEventService(
	events ports.EventRepository,
	profiles ports.ProfileRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	exec *resilience.Executor,
	opts ...Option,
) *EventService {
	o := defaultOptions(opts)
	return &EventService{
		events:     events,
		profiles:   profiles,
		cache:      cache,
		publisher:  publisher,
		exec:       exec,
		logger:     o.logger,
		now:        o.now,
		onFallback: o.onFallback,
	}
}

// Create validates and stores a new event hosted by hostID.
func (s *EventService) Create(ctx context.Context, hostID string, e *domain.Event) (*domain.Event, error) {
	e.HostID = hostID
	e.Title = strings.TrimSpace(e.Title)
	e.Sport = strings.ToLower(strings.TrimSpace(e.Sport))
	if err := s.validateNew(e); err != nil {
		return nil, err
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Status = domain.EventOpen
	e.ParticipantCount = 0
	e.DistanceKm = nil
	e.CreatedAt = s.now().UTC()

	if err := run(ctx, s.exec, "events.create", func(ctx context.Context) error {
		return s.events.Create(ctx, e)
	}); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.publish(ctx, "events.publish_created", func(ctx context.Context) error {
		return s.publisher.PublishEventCreated(ctx, e)
	})
	return e, nil
}

func (s *EventService) validateNew(e *domain.Event) error {
	var problems []string
	if e.HostID == "" {
		problems = append(problems, "host is required")
	}
	if n := utf8.RuneCountInString(e.Title); n == 0 || n > 120 {
		problems = append(problems, "title must be 1-120 characters")
	}
	if e.Sport == "" {
		problems = append(problems, "sport is required")
	}
	if !e.SkillLevel.Valid() {
		problems = append(problems, fmt.Sprintf("unknown skill level %q", e.SkillLevel))
	}
	if e.Capacity < minCapacity || e.Capacity > maxCapacity {
		problems = append(problems, fmt.Sprintf("capacity must be between %d and %d", minCapacity, maxCapacity))
	}
	if !e.StartsAt.After(s.now()) {
		problems = append(problems, "start time must be in the future")
	}
	if !e.EndsAt.After(e.StartsAt) {
		problems = append(problems, "end time must be after the start time")
	}
	if e.Location != nil && !e.Location.Valid() {
		problems = append(problems, "location is not a valid coordinate")
	}
	if len(problems) > 0 {
		return invalidf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id string) (*domain.Event, error) {
	return resilience.Do(ctx, s.exec, "events.get", func(ctx context.Context) (*domain.Event, error) {
		return s.events.GetByID(ctx, id)
	})
}

// GetDetails returns an event with its host and participant profiles. The
// event and its participant list are loaded concurrently; the first failure
// cancels the other.
func (s *EventService) GetDetails(ctx context.Context, id string) (*domain.EventDetails, error) {
	var (
		event        *domain.Event
		participants []domain.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		event, err = s.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		list, err := resilience.Do(gctx, s.exec, "events.list_participants", func(ctx context.Context) ([]domain.Participant, error) {
			return s.events.ListParticipants(ctx, id)
		})
		if err != nil || len(list) == 0 {
			return err
		}
		ids := make([]string, len(list))
		for i, p := range list {
			ids[i] = p.ProfileID
		}
		participants, err = resilience.Do(gctx, s.exec, "profiles.get_many", func(ctx context.Context) ([]domain.Profile, error) {
			return s.profiles.GetByIDs(ctx, ids)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	details := &domain.EventDetails{Event: event, Participants: participants}
	if details.Participants == nil {
		details.Participants = []domain.Profile{}
	}

	host, err := resilience.Do(ctx, s.exec, "profiles.get", func(ctx context.Context) (*domain.Profile, error) {
		return s.profiles.GetByID(ctx, event.HostID)
	})
	switch {
	case err == nil:
		details.Host = host
	case isNotFound(err):
		// Host deleted their profile; the event stays visible.
	default:
		return nil, err
	}
	return details, nil
}

// ListByStatus pages through events in the given status.
func (s *EventService) ListByStatus(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error) {
	if status == "" {
		status = domain.EventOpen
	}
	if !status.Valid() {
		return nil, invalidf("unknown status %q", status)
	}
	limit = clampLimit(limit, 20, 100)
	if offset < 0 {
		offset = 0
	}
	return resilience.Do(ctx, s.exec, "events.list_by_status", func(ctx context.Context) ([]domain.Event, error) {
		return s.events.ListByStatus(ctx, status, limit, offset)
	})
}

// SearchNearby returns events within filter.Near, nearest first.
//
// The database radius search is tried first; if it fails the service falls
// back to a plain bounding-box query. Either way every candidate is checked
// again with the exact great-circle distance so that nothing outside the
// radius is returned.
func (s *EventService) SearchNearby(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	if filter.Near == nil {
		return nil, invalidf("a center point and radius are required")
	}
	q := *filter.Near
	if err := q.Validate(); err != nil {
		return nil, invalidf("%v", err)
	}
	if filter.Status == "" {
		filter.Status = domain.EventOpen
	}
	if !filter.Status.Valid() {
		return nil, invalidf("unknown status %q", filter.Status)
	}
	filter.Sport = strings.ToLower(strings.TrimSpace(filter.Sport))
	filter.Limit = clampLimit(filter.Limit, 20, 100)

	// The key carries the exact query; rounded keys would hand one query the
	// results of a nearby center or a wider radius.
	cacheKey := fmt.Sprintf("events:nearby:%s:%s:%s:%s:%s:%d",
		formatCoord(q.Center.Lat), formatCoord(q.Center.Lon), formatCoord(q.RadiusKm),
		filter.Sport, filter.Status, filter.Limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached []domain.Event
			if err := json.Unmarshal(data, &cached); err == nil {
				return withinRadius(cached, q), nil
			}
		}
	}

	candidates, err := resilience.WithFallback(ctx,
		func(ctx context.Context) ([]domain.Event, error) {
			return resilience.Do(ctx, s.exec, "events.search_nearby", func(ctx context.Context) ([]domain.Event, error) {
				return s.events.SearchNearby(ctx, q, filter)
			})
		},
		func(ctx context.Context) ([]domain.Event, error) {
			box := geospatial.SearchBounds(q.Center, q.RadiusKm)
			return resilience.Do(ctx, s.exec, "events.find_in_bounds", func(ctx context.Context) ([]domain.Event, error) {
				return s.events.FindInBounds(ctx, box, filter)
			})
		},
		func(err error) {
			s.onFallback("events.search_nearby", err)
			s.logger.WarnContext(ctx, "nearby search falling back to bounding box", "error", err)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("search nearby events: %w", err)
	}

	events := withinRadius(candidates, q)
	if len(events) > filter.Limit {
		events = events[:filter.Limit]
	}

	if s.cache != nil {
		if data, err := json.Marshal(events); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, nearbyCacheTTL)
		}
	}
	return events, nil
}

// withinRadius keeps the events inside q, annotated with their distance and
// sorted nearest first. It never returns nil.
func withinRadius(candidates []domain.Event, q domain.GeoQuery) []domain.Event {
	events := slices.Collect(geospatial.FilterWithinRadius(candidates, q))
	for i := range events {
		d := geospatial.DistanceKm(q.Center, *events[i].Location)
		events[i].DistanceKm = &d
	}
	geospatial.SortByDistance(events, q.Center)
	if events == nil {
		events = []domain.Event{}
	}
	return events
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Join adds profileID to the event and marks it full once capacity is reached.
func (s *EventService) Join(ctx context.Context, eventID, profileID string) (*domain.Event, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	switch {
	case e.Status.Closed():
		return nil, conflict(ErrEventClosed)
	case e.HostID == profileID:
		return nil, conflict(ErrHostCannotJoin)
	case e.Status == domain.EventFull:
		return nil, conflict(ErrEventFull)
	}

	count, err := resilience.Do(ctx, s.exec, "events.add_participant", func(ctx context.Context) (int, error) {
		return s.events.AddParticipant(ctx, eventID, profileID)
	})
	if err != nil {
		return nil, fmt.Errorf("join event: %w", err)
	}
	e.ParticipantCount = count

	if count >= e.Capacity && e.Status == domain.EventOpen {
		if err := s.setStatus(ctx, e, domain.EventFull); err != nil {
			return nil, err
		}
	}

	p := &domain.Participant{EventID: eventID, ProfileID: profileID, JoinedAt: s.now().UTC()}
	s.publish(ctx, "events.publish_joined", func(ctx context.Context) error {
		return s.publisher.PublishParticipantJoined(ctx, p)
	})
	return e, nil
}

// Leave removes profileID from the event and re-opens it if it was full.
func (s *EventService) Leave(ctx context.Context, eventID, profileID string) (*domain.Event, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status.Closed() {
		return nil, conflict(ErrEventClosed)
	}

	count, err := resilience.Do(ctx, s.exec, "events.remove_participant", func(ctx context.Context) (int, error) {
		return s.events.RemoveParticipant(ctx, eventID, profileID)
	})
	if err != nil {
		return nil, fmt.Errorf("leave event: %w", err)
	}
	e.ParticipantCount = count

	if e.Status == domain.EventFull && count < e.Capacity {
		if err := s.setStatus(ctx, e, domain.EventOpen); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Cancel cancels an event. Only the host may cancel.
func (s *EventService) Cancel(ctx context.Context, eventID, actorID string) (*domain.Event, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.HostID != actorID {
		return nil, forbidden("only the host can cancel an event")
	}
	if e.Status.Closed() {
		return nil, conflict(ErrEventClosed)
	}
	if err := s.setStatus(ctx, e, domain.EventCancelled); err != nil {
		return nil, err
	}
	return e, nil
}

// CompleteEvent marks a single event completed once its end time has passed.
// Completing an event that is already closed is a no-op.
func (s *EventService) CompleteEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	e, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status.Closed() {
		return e, nil
	}
	if s.now().Before(e.EndsAt) {
		return nil, conflict(ErrEventNotEnded)
	}
	if err := s.setStatus(ctx, e, domain.EventCompleted); err != nil {
		return nil, err
	}
	return e, nil
}

// CompleteEnded marks every open or full event whose end time has passed as
// completed and returns how many were updated.
func (s *EventService) CompleteEnded(ctx context.Context) (int, error) {
	events, err := resilience.Do(ctx, s.exec, "events.list_ended", func(ctx context.Context) ([]domain.Event, error) {
		return s.events.ListEndedBefore(ctx, s.now().UTC(), completeBatch)
	})
	if err != nil {
		return 0, err
	}

	done := 0
	for i := range events {
		if err := s.setStatus(ctx, &events[i], domain.EventCompleted); err != nil {
			return done, err
		}
		done++
	}
	if done > 0 {
		s.logger.InfoContext(ctx, "completed ended events", "count", done)
	}
	return done, nil
}

func (s *EventService) setStatus(ctx context.Context, e *domain.Event, status domain.EventStatus) error {
	if err := run(ctx, s.exec, "events.update_status", func(ctx context.Context) error {
		return s.events.UpdateStatus(ctx, e.ID, status)
	}); err != nil {
		return fmt.Errorf("set event %s %s: %w", e.ID, status, err)
	}
	e.Status = status

	change := ports.EventStatusChange{EventID: e.ID, Status: status, ChangedAt: s.now().UTC()}
	s.publish(ctx, "events.publish_status", func(ctx context.Context) error {
		return s.publisher.PublishEventStatusChanged(ctx, change)
	})
	return nil
}

// publish is best-effort: the state change has already been stored.
func (s *EventService) publish(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if s.publisher == nil {
		return
	}
	if err := run(ctx, s.exec, name, fn); err != nil {
		s.logger.WarnContext(ctx, "publish failed", "op", name, "error", err)
	}
}
