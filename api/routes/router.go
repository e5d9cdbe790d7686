package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/api/controllers"
	"github.com/angelmondragon/wardrobe-backend/api/middleware"
	"github.com/angelmondragon/wardrobe-backend/internal/auth"
	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/internal/outfits"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

type sessionManager interface {
	Active(ctx context.Context, accessID string) (bool, error)
	Rotate(ctx context.Context, accessID, presented string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// RedisStore is the redis surface shared by the HTTP middleware.
// *pkg/redis.Client satisfies it.
type RedisStore interface {
	Replay(ctx context.Context, scope, key string) (string, bool, error)
	StoreReplay(ctx context.Context, scope, key, record string, ttl time.Duration) (bool, error)
	Hit(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
	Lock(ctx context.Context, scope, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, scope, token string) error
	Ping(ctx context.Context) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Deps carries everything the API routes serve.
type Deps struct {
	DB       controllers.Pinger
	Redis    RedisStore
	Blobs    controllers.Pinger
	Tokens   *pkgAuth.Tokens
	Sessions sessionManager
	Auth     auth.Service
	Users    userFinder
	Items    items.Service
	Outfits  outfits.Service
	Uploads  controllers.UploadLimits

	// LocalBlobs is set when blobs live on local disk and are served by the API.
	LocalBlobs controllers.LocalBlobs
	// Metrics is mounted at cfg.Metrics.Path when metrics are enabled.
	Metrics http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	idempotent := middleware.Idempotency(deps.Redis, cfg.Redis.IdempotencyTTL, logg)
	saveLock := middleware.SaveLock(deps.Redis, cfg.Redis.SaveLockTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: deps.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: deps.Redis},
			controllers.ReadinessCheck{Name: "blobs", Pinger: deps.Blobs},
		))
	})

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Handle(cfg.Metrics.Path, deps.Metrics)
	}
	if deps.LocalBlobs != nil {
		r.Get("/blobs/*", controllers.BlobServe(deps.LocalBlobs, logg))
	}

	r.Get("/v1/public/ping", controllers.Ping())

	r.Route("/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(middleware.LoginThrottle(cfg.AuthRateLimit), deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(middleware.RegisterThrottle(cfg.AuthRateLimit), deps.Redis, logg), idempotent).
			Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Sessions, deps.Tokens, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Sessions, deps.Tokens, logg))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Tokens, deps.Sessions, logg))
		r.Use(middleware.RateLimit(deps.Redis, cfg.Redis.APIRateLimit, cfg.Redis.APIRateWindow, logg))

		r.Get("/ping", controllers.Ping())
		r.Get("/me", controllers.Me(deps.Users, logg))

		r.Get("/items", controllers.ItemList(deps.Items, logg))
		r.With(idempotent, saveLock).Post("/items", controllers.ItemCreate(deps.Items, deps.Uploads, logg))
		r.Get("/items/{itemId}", controllers.ItemDetail(deps.Items, logg))
		r.With(idempotent, saveLock).Patch("/items/{itemId}", controllers.ItemEdit(deps.Items, deps.Uploads, logg))
		r.Delete("/items/{itemId}", controllers.ItemDelete(deps.Items, logg))

		r.Post("/outfits/drafts", controllers.OutfitDraftCreate(deps.Outfits, logg))
	})

	return r
}
