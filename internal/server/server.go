package server

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/auth"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/config"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/events"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/routing"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/scoring"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/segment"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/store"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/stream"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/telemetry"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/throttle"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/trip"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/vehicle"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Log      *logrus.Logger
	Stream   *stream.Hub
	Store    *store.Postgres
	Auth     *auth.Service
	Trips    *trip.Service
	Vehicles *vehicle.Service
}

// NewServer wires the pipeline. publisher receives trip and vehicle events in
// addition to the websocket hub and may be nil.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, publisher events.Publisher, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Log:    log,
		Stream: stream.NewHub(redisClient, log),
		Store:  store.NewPostgres(db),
		Auth:   auth.NewService(cfg.JWTSecret, db),
	}
	pub := events.Multi{s.Stream, publisher}

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	// Cache hits do not spend routing quota.
	routes := routing.NewCache(
		routing.NewThrottled(
			routing.NewMapbox(cfg.MapboxAPIURL, cfg.MapboxAccessToken, httpClient),
			throttle.New(cfg.RouteRateLimit, cfg.RouteRateWindow),
		),
		redisClient, cfg.RouteCacheTTL, log.WithField("component", "route_cache"),
	)

	s.Vehicles = vehicle.NewService(
		s.Store,
		vehicle.NewAggregator(cfg.Location(), vehicle.DefaultWeights),
		pub,
		log.WithField("component", "vehicle"),
	)
	s.Trips = trip.NewService(trip.Deps{
		Store:     s.Store,
		Telemetry: telemetry.NewClient(cfg.TelemetryAPIURL, httpClient),
		Trips:     telemetry.NewTripLister(cfg.TripsAPIURL, httpClient),
		Routes:    routes,
		Vehicles:  s.Vehicles,
		Publisher: pub,
		Log:       log.WithField("component", "trip"),
		Segment: segment.Config{
			Window:      cfg.SegmentWindow,
			MaxSpeed:    cfg.SegmentMaxSpeedMPS,
			MinDistance: cfg.SegmentMinDistanceM,
		},
		Weights:     scoring.DefaultTripWeights,
		Concurrency: cfg.ProcessConcurrency,
	})

	registerRoutes(s)
	return s
}

// Prepare creates the schema and seeds the configured API client.
func (s *Server) Prepare(ctx context.Context) error {
	if err := s.Store.Migrate(ctx); err != nil {
		return err
	}
	if s.Cfg.APIClientID != "" {
		return s.Auth.EnsureClient(ctx, s.Cfg.APIClientID, s.Cfg.APIClientSecret)
	}
	return nil
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), s.Auth, jwtMiddleware)
	trip.RegisterRoutes(s.App.Group("/trips"), s.Trips, jwtMiddleware)
	vehicle.RegisterRoutes(s.App.Group("/vehicles"), s.Vehicles, s.Trips, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
