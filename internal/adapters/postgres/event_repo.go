package postgres

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// maxBoundsCandidates caps the bounding-box fallback query. Its rows are
// filtered again by exact distance, so it returns more than the caller's limit.
const maxBoundsCandidates = 500

const eventColumns = `e.id, e.host_id, e.title, COALESCE(e.description, ''), e.sport,
	COALESCE(e.skill_level, ''), e.status, COALESCE(e.venue, ''),
	e.latitude, e.longitude, e.starts_at, e.ends_at, e.capacity,
	(SELECT count(*) FROM event_participants ep WHERE ep.event_id = e.id)::int,
	e.created_at`

// EventRepo implements ports.EventRepository with pgx.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Create inserts an event. The client-generated id makes the insert idempotent.
func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	lat, lon := splitPoint(e.Location)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO events (id, host_id, title, description, sport, skill_level, status, venue,
		                    latitude, longitude, starts_at, ends_at, capacity, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, NULLIF($8, ''),
		        $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.HostID, e.Title, e.Description, e.Sport, string(e.SkillLevel), string(e.Status), e.Venue,
		lat, lon, e.StartsAt, e.EndsAt, e.Capacity, e.CreatedAt)
	return classify("events.create", err)
}

// GetByID returns an event by id.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, classify("events.get", err)
	}
	return e, nil
}

// UpdateStatus sets the status of an event.
func (r *EventRepo) UpdateStatus(ctx context.Context, id string, status domain.EventStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE events SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return classify("events.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return classify("events.update_status", pgx.ErrNoRows)
	}
	return nil
}

// ListByStatus pages through events with the given status, soonest first.
func (r *EventRepo) ListByStatus(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		WHERE e.status = $1
		ORDER BY e.starts_at, e.id
		LIMIT $2 OFFSET $3
	`, string(status), limit, offset)
	if err != nil {
		return nil, classify("events.list_by_status", err)
	}
	events, err := collectEvents(rows)
	return events, classify("events.list_by_status", err)
}

// FindInBounds returns events whose coordinates fall inside b.
func (r *EventRepo) FindInBounds(ctx context.Context, b domain.Bounds, f domain.EventFilter) ([]domain.Event, error) {
	args := []any{b.MinLat, b.MaxLat}
	conds := []string{"e.latitude BETWEEN $1 AND $2", "e.longitude IS NOT NULL"}
	if !b.AllLongitudes() {
		args = append(args, b.MinLon, b.MaxLon)
		switch {
		case b.MinLon < -180:
			conds = append(conds, "(e.longitude >= $3 + 360 OR e.longitude <= $4)")
		case b.MaxLon > 180:
			conds = append(conds, "(e.longitude >= $3 OR e.longitude <= $4 - 360)")
		default:
			conds = append(conds, "e.longitude BETWEEN $3 AND $4")
		}
	}
	conds, args = filterConditions(f, conds, args)
	order, args := boundsOrder(f, args)
	args = append(args, maxBoundsCandidates)

	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM events e
		WHERE %s
		ORDER BY %s
		LIMIT $%d
	`, eventColumns, strings.Join(conds, " AND "), order, len(args)), args...)
	if err != nil {
		return nil, classify("events.find_in_bounds", err)
	}
	events, err := collectEvents(rows)
	return events, classify("events.find_in_bounds", err)
}

// SearchNearby calls the search_events_nearby database function, which
// returns event rows within radius_km of the center.
func (r *EventRepo) SearchNearby(ctx context.Context, q domain.GeoQuery, f domain.EventFilter) ([]domain.Event, error) {
	args := []any{q.Center.Lat, q.Center.Lon, q.RadiusKm}
	conds, args := filterConditions(f, []string{"TRUE"}, args)
	args = append(args, maxBoundsCandidates)

	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM search_events_nearby($1, $2, $3) e
		WHERE %s
		LIMIT $%d
	`, eventColumns, strings.Join(conds, " AND "), len(args)), args...)
	if err != nil {
		return nil, classify("events.search_nearby", err)
	}
	events, err := collectEvents(rows)
	return events, classify("events.search_nearby", err)
}

// AddParticipant adds a participant unless the event is at capacity. Adding
// an existing participant changes nothing.
func (r *EventRepo) AddParticipant(ctx context.Context, eventID, profileID string) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var capacity int
		if err := tx.QueryRow(ctx,
			`SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID,
		).Scan(&capacity); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO event_participants (event_id, profile_id, joined_at)
			VALUES ($1, $2, now())
			ON CONFLICT (event_id, profile_id) DO NOTHING
		`, eventID, profileID)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx,
			`SELECT count(*)::int FROM event_participants WHERE event_id = $1`, eventID,
		).Scan(&count); err != nil {
			return err
		}
		if tag.RowsAffected() == 1 && count > capacity {
			return resilience.Wrap(resilience.KindConflict, "events.add_participant", ErrCapacityReached)
		}
		return nil
	})
	if err != nil {
		return 0, classify("events.add_participant", err)
	}
	return count, nil
}

// RemoveParticipant removes a participant and returns the remaining count.
func (r *EventRepo) RemoveParticipant(ctx context.Context, eventID, profileID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		WITH removed AS (
			DELETE FROM event_participants WHERE event_id = $1 AND profile_id = $2
			RETURNING 1
		)
		SELECT (SELECT count(*) FROM event_participants WHERE event_id = $1)::int
		     - (SELECT count(*) FROM removed)::int
	`, eventID, profileID).Scan(&count)
	if err != nil {
		return 0, classify("events.remove_participant", err)
	}
	return count, nil
}

// ListParticipants returns the participants of an event in join order.
func (r *EventRepo) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT event_id, profile_id, joined_at
		FROM event_participants
		WHERE event_id = $1
		ORDER BY joined_at
	`, eventID)
	if err != nil {
		return nil, classify("events.list_participants", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.EventID, &p.ProfileID, &p.JoinedAt); err != nil {
			return nil, classify("events.list_participants", err)
		}
		participants = append(participants, p)
	}
	return participants, classify("events.list_participants", rows.Err())
}

// ListEndedBefore returns open or full events that ended before t.
func (r *EventRepo) ListEndedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Event, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events e
		WHERE e.status IN ('open', 'full') AND e.ends_at < $1
		ORDER BY e.ends_at
		LIMIT $2
	`, t, limit)
	if err != nil {
		return nil, classify("events.list_ended", err)
	}
	events, err := collectEvents(rows)
	return events, classify("events.list_ended", err)
}

// filterConditions appends the optional EventFilter predicates.
func filterConditions(f domain.EventFilter, conds []string, args []any) ([]string, []any) {
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("e.status = $%d", string(f.Status))
	}
	if f.Sport != "" {
		add("e.sport = $%d", f.Sport)
	}
	if f.Query != "" {
		add("e.title ILIKE '%%' || $%d || '%%'", f.Query)
	}
	if f.From != nil {
		add("e.starts_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("e.starts_at <= $%d", *f.To)
	}
	return conds, args
}

// boundsOrder sorts bounding-box candidates nearest to f.Near first, so the
// candidate cap drops the farthest rows. The key is an equirectangular
// distance proxy with the longitude gap wrapped across the antimeridian.
func boundsOrder(f domain.EventFilter, args []any) (string, []any) {
	if f.Near == nil {
		return "e.starts_at, e.id", args
	}
	c := f.Near.Center
	args = append(args, c.Lat, c.Lon, math.Cos(c.Lat*math.Pi/180))
	lat, lon, scale := len(args)-2, len(args)-1, len(args)
	return fmt.Sprintf(
		"power(e.latitude - $%[1]d, 2) + power(LEAST(abs(e.longitude - $%[2]d), 360 - abs(e.longitude - $%[2]d)) * $%[3]d, 2), e.starts_at, e.id",
		lat, lon, scale), args
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e             domain.Event
		level, status string
		lat, lon      *float64
	)
	if err := row.Scan(
		&e.ID, &e.HostID, &e.Title, &e.Description, &e.Sport,
		&level, &status, &e.Venue,
		&lat, &lon, &e.StartsAt, &e.EndsAt, &e.Capacity,
		&e.ParticipantCount, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.SkillLevel = domain.SkillLevel(level)
	e.Status = domain.EventStatus(status)
	e.Location = joinPoint(lat, lon)
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
