package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/joinix/joinix/internal/core/domain"
)

// buildSchema creates the read-only GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	profileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"display_name":  &graphql.Field{Type: graphql.String},
			"bio":           &graphql.Field{Type: graphql.String},
			"sports":        &graphql.Field{Type: graphql.NewList(graphql.String)},
			"skill_level":   &graphql.Field{Type: graphql.String},
			"avatar_url":    &graphql.Field{Type: graphql.String},
			"home_location": &graphql.Field{Type: geoPointType},
		},
	})

	eventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Event",
		Fields: graphql.Fields{
			"id":                &graphql.Field{Type: graphql.String},
			"host_id":           &graphql.Field{Type: graphql.String},
			"title":             &graphql.Field{Type: graphql.String},
			"description":       &graphql.Field{Type: graphql.String},
			"sport":             &graphql.Field{Type: graphql.String},
			"skill_level":       &graphql.Field{Type: graphql.String},
			"status":            &graphql.Field{Type: graphql.String},
			"venue":             &graphql.Field{Type: graphql.String},
			"location":          &graphql.Field{Type: geoPointType},
			"starts_at":         &graphql.Field{Type: graphql.DateTime},
			"ends_at":           &graphql.Field{Type: graphql.DateTime},
			"capacity":          &graphql.Field{Type: graphql.Int},
			"participant_count": &graphql.Field{Type: graphql.Int},
			"distance_km":       &graphql.Field{Type: graphql.Float},
			"spots_left": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if e, ok := eventSource(p.Source); ok {
						return e.SpotsLeft(), nil
					}
					return nil, nil
				},
			},
			"host": &graphql.Field{
				Type: profileType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					e, ok := eventSource(p.Source)
					if !ok {
						return nil, nil
					}
					return gql(deps.Profiles.Get(p.Context, e.HostID))
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"event": &graphql.Field{
				Type:        eventType,
				Description: "Get an event by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return gql(deps.Events.Get(p.Context, p.Args["id"].(string)))
				},
			},
			"eventsNearby": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Events within radius_km of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
					"sport":     &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return gql(deps.Events.SearchNearby(p.Context, domain.EventFilter{
						Sport: p.Args["sport"].(string),
						Near: &domain.GeoQuery{
							Center:   domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)},
							RadiusKm: p.Args["radius_km"].(float64),
						},
						Limit: p.Args["limit"].(int),
					}))
				},
			},
			"eventsByStatus": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Events in a lifecycle state",
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.EventOpen)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					status := domain.EventStatus(p.Args["status"].(string))
					return gql(deps.Events.ListByStatus(p.Context, status, p.Args["limit"].(int), p.Args["offset"].(int)))
				},
			},
			"profile": &graphql.Field{
				Type:        profileType,
				Description: "Get a profile by id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return gql(deps.Profiles.Get(p.Context, p.Args["id"].(string)))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func eventSource(src any) (domain.Event, bool) {
	switch e := src.(type) {
	case domain.Event:
		return e, true
	case *domain.Event:
		if e != nil {
			return *e, true
		}
	}
	return domain.Event{}, false
}

// gql replaces service errors with the message the REST surface would show.
func gql[T any](v T, err error) (any, error) {
	if err != nil {
		_, _, msg := statusFor(err)
		return nil, errors.New(msg)
	}
	return v, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
