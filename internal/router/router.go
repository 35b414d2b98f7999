package router

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/handlers"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/internal/services"
	"github.com/anonto42/yatube/backend/pkg/config"
	pkglog "github.com/anonto42/yatube/backend/pkg/log"
	"github.com/anonto42/yatube/backend/pkg/storage"
	"github.com/anonto42/yatube/backend/validators"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Config    *config.Config
	DB        *gorm.DB
	Media     storage.Storage
	Cache     cache.Store
	Publisher events.Publisher
	// Firebase is nil when no credentials are configured.
	Firebase middleware.TokenVerifier
	// Now stamps new posts and comments; nil means time.Now.
	Now func() time.Time
}

// New builds the echo instance with middleware and routes.
func New(deps Dependencies, logger zerolog.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = httpErrorHandler(e)

	SetupMiddleware(e, logger)
	if err := SetupRoutes(e, deps); err != nil {
		return nil, err
	}
	return e, nil
}

// httpErrorHandler names the requested path in 404 bodies and leaves every
// other error to echo's default handler.
func httpErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if c.Response().Committed || !errors.As(err, &he) || he.Code != http.StatusNotFound {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(http.StatusNotFound)
		} else {
			err = c.JSON(http.StatusNotFound, echo.Map{"message": he.Message, "path": c.Request().URL.Path})
		}
		if err != nil {
			e.Logger.Error(err)
		}
	}
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger zerolog.Logger) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(pkglog.EchoMiddleware(logger))
	e.Use(eventContext)
	log.Println("Global middleware configured.")
}

// eventContext tags outgoing events with the request id.
func eventContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(events.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// SetupRoutes migrates the schema, wires repositories, services and handlers,
// and registers every route.
func SetupRoutes(e *echo.Echo, deps Dependencies) error {
	cfg := deps.Config

	if err := models.Migrate(deps.DB); err != nil {
		return err
	}
	log.Println("Auto-migrations completed for all models.")

	// --- Initialize Repositories ---
	userRepo := repositories.NewGormUserRepository(deps.DB)
	groupRepo := repositories.NewGormGroupRepository(deps.DB)
	postRepo := repositories.NewGormPostRepository(deps.DB)
	commentRepo := repositories.NewGormCommentRepository(deps.DB)
	followRepo := repositories.NewGormFollowRepository(deps.DB)

	// --- Services ---
	content := services.NewContentService(userRepo, groupRepo, postRepo, commentRepo, deps.Media, deps.Publisher, deps.Now)
	feeds := services.NewFeedService(postRepo, groupRepo, userRepo, followRepo, cfg.Server.PageSize)
	follows := services.NewFollowService(userRepo, followRepo, deps.Publisher)
	pages := cache.NewPages(deps.Cache, cache.TTLs{
		Index:       cfg.Cache.TTL.Index,
		GroupList:   cfg.Cache.TTL.GroupList,
		GroupPosts:  cfg.Cache.TTL.GroupPosts,
		Post:        cfg.Cache.TTL.Post,
		FollowIndex: cfg.Cache.TTL.FollowIndex,
	}, cfg.Cache.InvalidateOnWrite)

	// --- Identity ---
	e.Use(middleware.JWTAuthMiddleware(cfg.Auth.JWTSecret, userRepo))
	if deps.Firebase != nil {
		e.Use(middleware.FirebaseAuthMiddleware(deps.Firebase, userRepo))
		log.Println("Firebase authentication middleware applied.")
	}
	login := middleware.LoginRequired(cfg.Auth.LoginURL)
	cached := func(route string) echo.MiddlewareFunc {
		return middleware.CachePage(pages, route)
	}

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(deps.DB))

	mediaHandler := handlers.NewMediaHandler(deps.Media)
	e.GET("/media/*", mediaHandler.Serve)

	// --- Authentication ---
	authGroup := e.Group("/auth")
	authHandler := handlers.NewAuthHandler(userRepo, deps.Firebase, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandler.RegisterAuthRoutes(authGroup)
	userHandler := handlers.NewUserHandler(userRepo, content, pages)
	authGroup.GET("/profile/", userHandler.GetProfile, login)
	authGroup.DELETE("/profile/", userHandler.DeleteProfile, login)
	log.Println("Auth routes configured.")

	// --- Feeds ---
	feedHandler := handlers.NewFeedHandler(feeds, content, follows)
	e.GET("/", feedHandler.Index, cached(cache.RouteIndex))
	e.GET("/group/", feedHandler.GroupList, cached(cache.RouteGroupList))
	e.GET("/group/:slug/", feedHandler.GroupPosts, cached(cache.RouteGroupPosts))
	e.GET("/follow/", feedHandler.FollowIndex, login, cached(cache.RouteFollowIndex))
	e.GET("/:username/", feedHandler.Profile)
	log.Println("Feed routes configured.")

	// --- Posts ---
	postHandler := handlers.NewPostHandler(content, pages, cfg.Server.MaxUploadBytes)
	e.GET("/new/", postHandler.NewPostForm, login)
	e.POST("/new/", postHandler.CreatePost, login)
	e.GET("/:username/:post_id/", postHandler.PostView, cached(cache.RoutePost))
	e.GET("/:username/:post_id/edit/", postHandler.EditForm, login)
	e.POST("/:username/:post_id/edit/", postHandler.EditPost, login)
	log.Println("Post routes configured.")

	// --- Comments ---
	commentHandler := handlers.NewCommentHandler(content, pages)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/:username/:post_id/comment", commentHandler.AddComment, login)
	log.Println("Comment routes configured.")

	// --- Follows ---
	followHandler := handlers.NewFollowHandler(follows, pages)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/:username/follow/", followHandler.ProfileFollow, login)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/:username/unfollow/", followHandler.ProfileUnfollow, login)
	log.Println("Follow routes configured.")

	log.Println("All routes configured.")
	return nil
}
