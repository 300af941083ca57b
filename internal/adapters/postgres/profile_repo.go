package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/joinix/joinix/internal/core/domain"
)

const profileColumns = `id, display_name, COALESCE(bio, ''), COALESCE(sports, '{}'),
	COALESCE(skill_level, ''), COALESCE(avatar_url, ''),
	home_latitude, home_longitude, created_at, updated_at`

// ProfileRepo implements ports.ProfileRepository with pgx.
type ProfileRepo struct {
	db *DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Create inserts a profile. Re-inserting the same id is a no-op so that a
// retried attempt succeeds.
func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	lat, lon := splitPoint(p.HomeLocation)
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO profiles (id, display_name, bio, sports, skill_level, avatar_url,
		                      home_latitude, home_longitude, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.DisplayName, p.Bio, p.Sports, string(p.SkillLevel), p.AvatarURL,
		lat, lon, p.CreatedAt, p.UpdatedAt)
	return classify("profiles.create", err)
}

// GetByID returns a profile by id.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, classify("profiles.get", err)
	}
	return p, nil
}

// GetByIDs returns multiple profiles, ordered by display name.
func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1) ORDER BY display_name
	`, ids)
	if err != nil {
		return nil, classify("profiles.get_many", err)
	}
	profiles, err := collectProfiles(rows)
	return profiles, classify("profiles.get_many", err)
}

// Update applies the non-nil fields of u and returns the stored profile.
func (r *ProfileRepo) Update(ctx context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	var level *string
	if u.SkillLevel != nil {
		s := string(*u.SkillLevel)
		level = &s
	}
	lat, lon := splitPoint(u.HomeLocation)

	row := r.db.Pool.QueryRow(ctx, `
		UPDATE profiles SET
			display_name   = COALESCE($2, display_name),
			bio            = COALESCE($3, bio),
			sports         = COALESCE($4, sports),
			skill_level    = COALESCE($5, skill_level),
			avatar_url     = COALESCE($6, avatar_url),
			home_latitude  = COALESCE($7, home_latitude),
			home_longitude = COALESCE($8, home_longitude),
			updated_at     = now()
		WHERE id = $1
		RETURNING `+profileColumns,
		id, u.DisplayName, u.Bio, u.Sports, level, u.AvatarURL, lat, lon)
	p, err := scanProfile(row)
	if err != nil {
		return nil, classify("profiles.update", err)
	}
	return p, nil
}

// Search matches display names case-insensitively.
func (r *ProfileRepo) Search(ctx context.Context, name string, limit int) ([]domain.Profile, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE display_name ILIKE '%' || $1 || '%'
		ORDER BY display_name
		LIMIT $2
	`, name, limit)
	if err != nil {
		return nil, classify("profiles.search", err)
	}
	profiles, err := collectProfiles(rows)
	return profiles, classify("profiles.search", err)
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p        domain.Profile
		level    string
		lat, lon *float64
	)
	if err := row.Scan(
		&p.ID, &p.DisplayName, &p.Bio, &p.Sports, &level, &p.AvatarURL,
		&lat, &lon, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.SkillLevel = domain.SkillLevel(level)
	p.HomeLocation = joinPoint(lat, lon)
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]domain.Profile, error) {
	defer rows.Close()
	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// splitPoint turns an optional point into two nullable columns.
func splitPoint(p *domain.GeoPoint) (lat, lon *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lon
}

// joinPoint is the inverse of splitPoint; a half-set pair counts as missing.
func joinPoint(lat, lon *float64) *domain.GeoPoint {
	if lat == nil || lon == nil {
		return nil
	}
	return &domain.GeoPoint{Lat: *lat, Lon: *lon}
}
