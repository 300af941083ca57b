package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/pkg/metrics"
)

type createProfileRequest struct {
	DisplayName  string            `json:"display_name"`
	Bio          string            `json:"bio"`
	Sports       []string          `json:"sports"`
	SkillLevel   domain.SkillLevel `json:"skill_level"`
	HomeLocation *domain.GeoPoint  `json:"home_location"`
}

// CreateProfileHandler registers the caller's profile.
func CreateProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		p, err := deps.Profiles.Create(c.UserContext(), &domain.Profile{
			ID:           userID(c),
			DisplayName:  req.DisplayName,
			Bio:          req.Bio,
			Sports:       req.Sports,
			SkillLevel:   req.SkillLevel,
			HomeLocation: req.HomeLocation,
		})
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// GetProfileHandler returns a single profile.
func GetProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Profiles.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(p)
	}
}

// UpdateProfileHandler applies a partial update to the caller's profile.
func UpdateProfileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var u domain.ProfileUpdate
		if err := c.BodyParser(&u); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		// The avatar only changes through the upload endpoint.
		u.AvatarURL = nil

		p, err := deps.Profiles.Update(c.UserContext(), userID(c), c.Params("id"), u)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(p)
	}
}

// SearchProfilesHandler finds profiles by display name.
func SearchProfilesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 100 {
			return errBadRequest(c, "query too long (max 100 characters)")
		}

		profiles, err := deps.Profiles.Search(c.UserContext(), query, c.QueryInt("limit", 20))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(profiles)
	}
}

// UploadAvatarHandler stores the raw request body as the caller's avatar.
func UploadAvatarHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		contentType := strings.TrimSpace(strings.Split(c.Get(fiber.HeaderContentType), ";")[0])
		// fasthttp reuses the body buffer once the handler returns, while an
		// abandoned attempt may still be uploading it.
		body := append([]byte(nil), c.Body()...)

		p, err := deps.Profiles.UploadAvatar(c.UserContext(), userID(c), c.Params("id"), contentType, body)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(p)
	}
}

type createEventRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Sport       string            `json:"sport"`
	SkillLevel  domain.SkillLevel `json:"skill_level"`
	Venue       string            `json:"venue"`
	Location    *domain.GeoPoint  `json:"location"`
	StartsAt    string            `json:"starts_at"`
	EndsAt      string            `json:"ends_at"`
	Capacity    int               `json:"capacity"`
}

// CreateEventHandler creates an event hosted by the caller.
func CreateEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createEventRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		starts, err := parseTime(req.StartsAt)
		if err != nil {
			return errBadRequest(c, "starts_at must be an RFC 3339 timestamp")
		}
		ends, err := parseTime(req.EndsAt)
		if err != nil {
			return errBadRequest(c, "ends_at must be an RFC 3339 timestamp")
		}

		e, err := deps.Events.Create(c.UserContext(), userID(c), &domain.Event{
			Title:       req.Title,
			Description: req.Description,
			Sport:       req.Sport,
			SkillLevel:  req.SkillLevel,
			Venue:       req.Venue,
			Location:    req.Location,
			StartsAt:    starts,
			EndsAt:      ends,
			Capacity:    req.Capacity,
		})
		if err != nil {
			return errFromService(c, err)
		}
		metrics.EventsCreated.Inc()
		return c.Status(fiber.StatusCreated).JSON(e)
	}
}

// ListEventsHandler lists events by status with offset pagination.
func ListEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		status := domain.EventStatus(c.Query("status"))
		events, err := deps.Events.ListByStatus(c.UserContext(), status, limit, offset)
		if err != nil {
			return errFromService(c, err)
		}
		if events == nil {
			events = []domain.Event{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Count: len(events)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: events, Pagination: pg})
	}
}

// NearbyEventsHandler returns events within radius_km of a point, nearest first.
func NearbyEventsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
		lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
		if latErr != nil || lonErr != nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius_km", 10)
		if radius <= 0 || radius > 200 {
			return errBadRequest(c, "radius_km must be between 0 and 200")
		}

		events, err := deps.Events.SearchNearby(c.UserContext(), domain.EventFilter{
			Sport:  c.Query("sport"),
			Status: domain.EventStatus(c.Query("status")),
			Near: &domain.GeoQuery{
				Center:   domain.GeoPoint{Lat: lat, Lon: lon},
				RadiusKm: radius,
			},
			Limit: c.QueryInt("limit", 20),
		})
		if err != nil {
			return errFromService(c, err)
		}
		if events == nil {
			events = []domain.Event{}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(events)
	}
}

// GetEventHandler returns an event with its host and participants.
func GetEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		details, err := deps.Events.GetDetails(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(details)
	}
}

// JoinEventHandler signs the caller up for an event.
func JoinEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		e, err := deps.Events.Join(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(e)
	}
}

// LeaveEventHandler removes the caller from an event.
func LeaveEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		e, err := deps.Events.Leave(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(e)
	}
}

// CancelEventHandler cancels an event hosted by the caller.
func CancelEventHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		e, err := deps.Events.Cancel(c.UserContext(), c.Params("id"), userID(c))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(e)
	}
}
