package http_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	handler "github.com/joinix/joinix/internal/adapters/http"
	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

// ---- Mock repositories ----

type mockProfileRepo struct {
	getByIDFn  func(ctx context.Context, id string) (*domain.Profile, error)
	getByIDsFn func(ctx context.Context, ids []string) ([]domain.Profile, error)
	updateFn   func(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error)
	searchFn   func(ctx context.Context, name string, limit int) ([]domain.Profile, error)
}

func (m *mockProfileRepo) Create(ctx context.Context, p *domain.Profile) error { return nil }
func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.Profile{ID: id, DisplayName: "Player " + id}, nil
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
	p := &domain.Profile{ID: id}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p, nil
}
func (m *mockProfileRepo) Search(ctx context.Context, name string, limit int) ([]domain.Profile, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, name, limit)
	}
	return nil, nil
}

type mockEventRepo struct {
	createFn        func(ctx context.Context, e *domain.Event) error
	getByIDFn       func(ctx context.Context, id string) (*domain.Event, error)
	updateStatusFn  func(ctx context.Context, id string, status domain.EventStatus) error
	listByStatusFn  func(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.Event, error)
	findInBoundsFn  func(ctx context.Context, b domain.Bounds, f domain.EventFilter) ([]domain.Event, error)
	searchNearbyFn  func(ctx context.Context, q domain.GeoQuery, f domain.EventFilter) ([]domain.Event, error)
	addParticipant  func(ctx context.Context, eventID, profileID string) (int, error)
	listParticipant func(ctx context.Context, eventID string) ([]domain.Participant, error)
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
	if m.addParticipant != nil {
		return m.addParticipant(ctx, eventID, profileID)
	}
	return 1, nil
}
func (m *mockEventRepo) RemoveParticipant(ctx context.Context, eventID, profileID string) (int, error) {
	return 0, nil
}
func (m *mockEventRepo) ListParticipants(ctx context.Context, eventID string) ([]domain.Participant, error) {
	if m.listParticipant != nil {
		return m.listParticipant(ctx, eventID)
	}
	return nil, nil
}
func (m *mockEventRepo) ListEndedBefore(ctx context.Context, t time.Time, limit int) ([]domain.Event, error) {
	return nil, nil
}

type mockConversationRepo struct {
	getFn    func(ctx context.Context, id string) (*domain.Conversation, error)
	upsertFn func(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error)
	insertFn func(ctx context.Context, msg *domain.Message) error
}

func (m *mockConversationRepo) UpsertConversation(ctx context.Context, a, b string, eventID *string) (*domain.Conversation, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, a, b, eventID)
	}
	return &domain.Conversation{ID: "c1", ParticipantA: a, ParticipantB: b, EventID: eventID}, nil
}
func (m *mockConversationRepo) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	return nil, notFound("conversations.find")
}
func (m *mockConversationRepo) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	return nil
}
func (m *mockConversationRepo) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, notFound("conversations.get")
}
func (m *mockConversationRepo) ListForProfile(ctx context.Context, profileID string, limit int) ([]domain.Conversation, error) {
	return nil, nil
}
func (m *mockConversationRepo) InsertMessage(ctx context.Context, msg *domain.Message) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, msg)
	}
	return nil
}
func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]domain.Message, error) {
	return nil, nil
}

type mockBlobs struct {
	keys []string
}

func (m *mockBlobs) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	m.keys = append(m.keys, key)
	return "https://cdn.joinix.test/" + key, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// ---- Test helpers ----

func notFound(op string) error {
	return resilience.Wrap(resilience.KindNotFound, op, errors.New("no rows in result set"))
}

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

type repos struct {
	profiles      *mockProfileRepo
	events        *mockEventRepo
	conversations *mockConversationRepo
	blobs         *mockBlobs
}

func makeDeps(t *testing.T, opts ...func(*repos)) *handler.Dependencies {
	t.Helper()
	r := &repos{
		profiles:      &mockProfileRepo{},
		events:        &mockEventRepo{},
		conversations: &mockConversationRepo{},
		blobs:         &mockBlobs{},
	}
	for _, o := range opts {
		o(r)
	}

	exec := newExec(t)
	return &handler.Dependencies{
		Profiles: usecases.NewProfileService(r.profiles, nil, r.blobs, exec),
		Events:   usecases.NewEventService(r.events, r.profiles, nil, nil, exec),
		Chat:     usecases.NewChatService(r.conversations, exec),
	}
}

func slogJSON(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}
