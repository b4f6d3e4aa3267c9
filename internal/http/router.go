package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/versusesportes/api/internal/config"
	httpmiddleware "github.com/versusesportes/api/internal/http/middleware"
	"github.com/versusesportes/api/internal/organizacao"
	"github.com/versusesportes/api/internal/usuario"
)

// Handler agrega as dependências dos endpoints transversais (health/ready).
type Handler struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, orgService *organizacao.Service, userService *usuario.Service) http.Handler {
	h := &Handler{pool: pool, redis: redisClient}

	orgHandler := organizacao.NewHandler(orgService)
	userHandler := usuario.NewHandler(userService)

	publicLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst)
	loginLimiter := httpmiddleware.NewRateLimiter(cfg.RateLimitLogin.RequestsPerSecond, cfg.RateLimitLogin.Burst)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))
	r.Use(httpmiddleware.IPRateLimit(publicLimiter))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Route("/organizacoes", func(sub chi.Router) {
		organizacao.Mount(sub, orgHandler)
	})

	r.Route("/usuarios", func(sub chi.Router) {
		// Login e refresh recebem limite mais rígido por IP.
		usuario.Mount(sub, userHandler, httpmiddleware.IPRateLimit(loginLimiter))
	})

	return r
}
