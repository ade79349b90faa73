package server

import (
	"log"

	"backend-geomine/internal/auth"
	"backend-geomine/internal/config"
	"backend-geomine/internal/db"
	"backend-geomine/internal/kv"
	"backend-geomine/internal/mission"
	"backend-geomine/internal/session"
	"backend-geomine/internal/stream"
	"backend-geomine/internal/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Sessions *session.Manager
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client) (*Server, error) {
	settings, err := session.SettingsFrom(cfg)
	if err != nil {
		return nil, err
	}

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	var store kv.Store = kv.NewMemoryStore()
	if redisClient != nil {
		store = kv.NewRedisStore(redisClient)
	} else {
		log.Printf("redis not configured, mined tiles are kept in memory")
	}

	// a nil pool must not reach the services as a non-nil interface
	var q db.Querier
	if pg != nil {
		q = pg
	}
	missions := mission.NewService(q)
	ledger := wallet.NewService(q)
	if q != nil {
		s.Sessions = session.NewManager(settings, store, missions, ledger, s.Stream)
	} else {
		s.Sessions = session.NewManager(settings, store, nil, nil, s.Stream)
	}

	registerRoutes(s, q, missions, ledger)
	return s, nil
}

func registerRoutes(s *Server, q db.Querier, missions *mission.Service, ledger *wallet.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": s.Sessions.Len()})
	})

	authService := auth.NewService(s.Cfg.JWTSecret, q)
	jwtMiddleware := auth.JWTMiddleware(authService)

	auth.RegisterRoutes(s.App.Group("/auth"), authService)
	session.RegisterRoutes(s.App.Group("/sessions"), s.Sessions, jwtMiddleware)
	mission.RegisterRoutes(s.App.Group("/missions"), missions, jwtMiddleware, s.Sessions.RefreshMissions)
	wallet.RegisterRoutes(s.App.Group("/wallet"), ledger, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Sessions.Enqueue, session.AuthorizeStream(s.Sessions, authService))
}

// Close stops every live session and the stream subscription.
func (s *Server) Close() {
	s.Sessions.StopAll()
	if err := s.Stream.Close(); err != nil {
		log.Printf("close stream hub: %v", err)
	}
}
