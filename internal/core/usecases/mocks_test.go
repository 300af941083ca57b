package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// newExec returns an executor that never sleeps between attempts.
func newExec(t *testing.T) *resilience.Executor {
	t.Helper()
	exec, err := resilience.NewExecutor(
		resilience.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond, GrowthFactor: 2, AttemptTimeout: time.Second},
		resilience.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec
}

func notFound(op string) error {
	return resilience.Wrap(resilience.KindNotFound, op, errors.New("no rows in result set"))
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// --- Mock ProfileRepository ---

type mockProfileRepo struct {
	createFn   func(ctx context.Context, p *domain.Profile) error
	getByIDFn  func(ctx context.Context, id string) (*domain.Profile, error)
	getByIDsFn func(ctx context.Context, ids []string) ([]domain.Profile, error)
	updateFn   func(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error)
	searchFn   func(ctx context.Context, name string, limit int) ([]domain.Profile, error)
}

func (m *mockProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Profile{ID: id}, nil
}

func (m *mockProfileRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, u)
	}
	return &domain.Profile{ID: id}, nil
}

func (m *mockProfileRepo) Search(ctx context.Context, name string, limit int) ([]domain.Profile, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, name, limit)
	}
	return nil, nil
}

// --- Mock EventRepository ---

type mockEventRepo struct {
	createFn            func(ctx context.Context, e *domain.Event) error
	getByIDFn           func(ctx context.Context, id string) (*domain.Event, error)
	updateStatusFn      func(ctx context.Context, id string, status domain.EventStatus) error
	listByStatusFn      func(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error)
	findInBoundsFn      func(ctx context.Context, b domain.Bounds, f domain.EventFilter) ([]domain.Event, error)
	searchNearbyFn      func(ctx context.Context, q domain.GeoQuery, f domain.EventFilter) ([]domain.Event, error)
	addParticipantFn    func(ctx context.Context, eventID, profileID string) (int, error)
	removeParticipantFn func(ctx context.Context, eventID, profileID string) (int, error)
	listParticipantsFn  func(ctx context.Context, eventID string) ([]domain.Participant, error)
	listEndedBeforeFn   func(ctx context.Context, t time.Time, limit int) ([]domain.Event, error)
}

func (m *mockEventRepo) Create(ctx context.Context, e *domain.Event) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	return nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, notFound("events.get")
}

func (m *mockEventRepo) UpdateStatus(ctx context.Context, id string, status domain.EventStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockEventRepo) ListByStatus(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *mockEventRepo) FindInBounds(ctx context.Context, b domain.Bounds, f domain.EventFilter) ([]domain.Event, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, f)
	}
	return nil, nil
}

func (m *mockEventRepo) SearchNearby(ctx context.Context, q domain.GeoQuery, f domain.EventFilter) ([]domain.Event, error) {
	if m.searchNearbyFn != nil {
		return m.searchNearbyFn(ctx, q, f)
	}
	return nil, nil
}

func (m *mockEventRepo) AddParticipant(ctx context.Context, eventID, profileID string) (int, error) {
	if m.addParticipantFn != nil {
		return m.addParticipantFn(ctx, eventID, profileID)
	}
	return 1, nil
}

func (m *mockEventRepo) RemoveParticipant(ctx context.Context, eventID, profileID string) (int, error) {
	if m.removeParticipantFn != nil {
		return m.removeParticipantFn(ctx, eventID, profileID)
	}
	return 0, nil
}

func (m *mockEventRepo) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	if m.listParticipantsFn != nil {
		return m.listParticipantsFn(ctx, eventID)
	}
	return nil, nil
}

func (m *mockEventRepo) ListEndedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Event, error) {
	if m.listEndedBeforeFn != nil {
		return m.listEndedBeforeFn(ctx, t, limit)
	}
	return nil, nil
}

// --- Mock ConversationRepository ---

type mockConversationRepo struct {
	upsertFn       func(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error)
	findFn         func(ctx context.Context, a, b string) (*domain.Conversation, error)
	createFn       func(ctx context.Context, c *domain.Conversation) error
	getFn          func(ctx context.Context, id string) (*domain.Conversation, error)
	listFn         func(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error)
	insertFn       func(ctx context.Context, msg *domain.Message) error
	listMessagesFn func(ctx context.Context, id string, before *time.Time, limit int) ([]domain.Message, error)
}

func (m *mockConversationRepo) UpsertConversation(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, a, b, eventID)
	}
	return &domain.Conversation{ID: "c1", ParticipantA: a, ParticipantB: b, EventID: eventID}, nil
}

func (m *mockConversationRepo) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	if m.findFn != nil {
		return m.findFn(ctx, a, b)
	}
	return nil, notFound("conversations.find")
}

func (m *mockConversationRepo) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockConversationRepo) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &domain.Conversation{ID: id, ParticipantA: "alice", ParticipantB: "bob"}, nil
}

func (m *mockConversationRepo) ListForProfile(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, profileID, limit)
	}
	return nil, nil
}

func (m *mockConversationRepo) InsertMessage(ctx context.Context, msg *domain.Message) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, msg)
	}
	return nil
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, id string, before *time.Time, limit int) ([]domain.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, id, before, limit)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	created  []string
	statuses []ports.EventStatusChange
	joined   []domain.Participant
	err      error
}

func (m *mockPublisher) PublishEventCreated(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, e.ID)
	return m.err
}

func (m *mockPublisher) PublishEventStatusChanged(_ context.Context, c ports.EventStatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, c)
	return m.err
}

func (m *mockPublisher) PublishParticipantJoined(_ context.Context, p *domain.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = append(m.joined, *p)
	return m.err
}

// --- Mock BlobStore ---

type mockBlobs struct {
	putFn func(ctx context.Context, key, contentType string, body []byte) (string, error)
}

func (m *mockBlobs) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if m.putFn != nil {
		return m.putFn(ctx, key, contentType, body)
	}
	return "https://cdn.example.com/" + key, nil
}
