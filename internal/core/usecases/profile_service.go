package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/ports"
	"github.com/joinix/joinix/internal/pkg/resilience"
)

const (
	maxAvatarBytes  = 5 << 20
	profileCacheTTL = 300
)

var avatarExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ProfileService handles player profiles.
type ProfileService struct {
	profiles ports.ProfileRepository
	cache    ports.CacheService
	blobs    ports.BlobStore
	exec     *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a new ProfileService. cache and blobs may be nil.
func NewProfileService(
	profiles ports.ProfileRepository,
	cache ports.CacheService,
	blobs ports.BlobStore,
	exec *resilience.Executor,
	opts ...Option,
) *ProfileService {
	o := defaultOptions(opts)
	return &ProfileService{
		profiles: profiles,
		cache:    cache,
		blobs:    blobs,
		exec:     exec,
		logger:   o.logger,
		now:      o.now,
	}
}

// Create registers the profile of the calling player.
func (s *ProfileService) Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, invalidf("profile id is required")
	}
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Sports = normalizeSports(p.Sports)
	if err := validateProfileFields(&p.DisplayName, p.SkillLevel, p.HomeLocation); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := run(ctx, s.exec, "profiles.create", func(ctx context.Context) error {
		return s.profiles.Create(ctx, p)
	}); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// Get returns a profile, served from cache when possible.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	cacheKey := "profiles:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var p domain.Profile
			if err := json.Unmarshal(data, &p); err == nil {
				return &p, nil
			}
		}
	}

	p, err := resilience.Do(ctx, s.exec, "profiles.get", func(ctx context.Context) (*domain.Profile, error) {
		return s.profiles.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, profileCacheTTL)
		}
	}
	return p, nil
}

// Update applies a partial update. Only the owner may update a profile.
func (s *ProfileService) Update(ctx context.Context, actorID, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	if actorID != id {
		return nil, forbidden("profiles can only be edited by their owner")
	}
	if u.DisplayName != nil {
		name := strings.TrimSpace(*u.DisplayName)
		u.DisplayName = &name
	}
	if u.Sports != nil {
		u.Sports = normalizeSports(u.Sports)
	}

	var level domain.SkillLevel
	if u.SkillLevel != nil {
		level = *u.SkillLevel
	}
	if err := validateProfileFields(u.DisplayName, level, u.HomeLocation); err != nil {
		return nil, err
	}

	return s.update(ctx, id, u)
}

func (s *ProfileService) update(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	p, err := resilience.Do(ctx, s.exec, "profiles.update", func(ctx context.Context) (*domain.Profile, error) {
		return s.profiles.Update(ctx, id, u)
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.invalidate(ctx, id)
	return p, nil
}

// Search finds profiles by display name.
func (s *ProfileService) Search(ctx context.Context, name string, limit int) ([]domain.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("search query must not be empty")
	}
	limit = clampLimit(limit, 20, 50)
	return resilience.Do(ctx, s.exec, "profiles.search", func(ctx context.Context) ([]domain.Profile, error) {
		return s.profiles.Search(ctx, name, limit)
	})
}

// UploadAvatar stores a new avatar image and points the profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, actorID, id, contentType string, data []byte) (*domain.Profile, error) {
	if actorID != id {
		return nil, forbidden("avatars can only be changed by their owner")
	}
	if s.blobs == nil {
		return nil, unavailable("avatar storage is not configured")
	}
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, invalidf("unsupported image type %q", contentType)
	}
	if len(data) == 0 {
		return nil, invalidf("image is empty")
	}
	if len(data) > maxAvatarBytes {
		return nil, invalidf("image exceeds %d MB", maxAvatarBytes>>20)
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", id, uuid.NewString(), ext)
	url, err := resilience.Do(ctx, s.exec, "avatars.put", func(ctx context.Context) (string, error) {
		return s.blobs.Put(ctx, key, contentType, data)
	})
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	s.logger.DebugContext(ctx, "avatar stored", "profile_id", id, "key", key, "bytes", len(data))

	return s.update(ctx, id, domain.ProfileUpdate{AvatarURL: &url})
}

func (s *ProfileService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, "profiles:id:"+id); err != nil {
		s.logger.WarnContext(ctx, "profile cache invalidation failed", "profile_id", id, "error", err)
	}
}

// validateProfileFields skips a nil display name.
func validateProfileFields(displayName *string, level domain.SkillLevel, home *domain.GeoPoint) error {
	var problems []string
	if displayName != nil {
		if n := utf8.RuneCountInString(*displayName); n < 2 || n > 50 {
			problems = append(problems, "display name must be 2-50 characters")
		}
	}
	if !level.Valid() {
		problems = append(problems, fmt.Sprintf("unknown skill level %q", level))
	}
	if home != nil && !home.Valid() {
		problems = append(problems, "home location is not a valid coordinate")
	}
	if len(problems) > 0 {
		return invalidf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func normalizeSports(sports []string) []string {
	out := make([]string, 0, len(sports))
	for _, sp := range sports {
		sp = strings.ToLower(strings.TrimSpace(sp))
		if sp != "" && !slices.Contains(out, sp) {
			out = append(out, sp)
		}
	}
	return out
}
