package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidnajera/mentiondesk-backend/api/controllers"
	"github.com/davidnajera/mentiondesk-backend/api/middleware"
	"github.com/davidnajera/mentiondesk-backend/internal/mentions"
	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/internal/users"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	redispkg "github.com/davidnajera/mentiondesk-backend/pkg/redis"
)

// RouterParams wire the HTTP surface.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Redis        *redispkg.Client
	Users        *users.Service
	Mentions     *mentions.Service
	Social       *social.Gateway
	PromGatherer prometheus.Gatherer
}

// NewRouter assembles the thin HTTP dispatcher over the core operations.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	var loginLimiter func(http.Handler) http.Handler
	if params.Redis != nil {
		loginPolicy := middleware.NewAuthRateLimitPolicy("login", time.Minute, 20, 5)
		loginLimiter = middleware.AuthRateLimit(loginPolicy, params.Redis, logg)
	} else {
		loginLimiter = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1/status", func(r chi.Router) {
		r.Get("/", controllers.StatusLive())
		r.Get("/health", controllers.StatusHealth(params.Social, logg))
	})

	if params.PromGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.PromGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/users", func(r chi.Router) {
		r.With(loginLimiter).Post("/login", controllers.UserLogin(params.Users, logg))
	})

	r.Route("/v1/mentions", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.ListMentions(params.Mentions, logg))
		r.Put("/{id}", controllers.UpdateMention(params.Mentions, logg))
		r.Post("/{id}/reply", controllers.ReplyToMention(params.Mentions, logg))
	})

	return r
}
