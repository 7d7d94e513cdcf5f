// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	_ "launchpad/docs" // swagger docs
	"launchpad/internal/bootstrap"
	"launchpad/internal/config"
	"launchpad/internal/featureflags"
	"launchpad/internal/mailer"
	"launchpad/internal/middleware"
	"launchpad/internal/models"
	"launchpad/internal/notifications"
	"launchpad/internal/repository"
	"launchpad/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	authService       *service.AuthService
	profileService    *service.ProfileService
	followService     *service.FollowService
	productService    *service.ProductService
	engagementService *service.EngagementService
	commentService    *service.CommentService
	articleService    *service.ArticleService
	newsService       *service.NewsService
	adminService      *service.AdminService
	contactService    *service.ContactService
	imageService      *service.ImageService
}

// NewServer creates a new server instance with all dependencies.
// A nil Redis client degrades realtime to local dispatch.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{SeedBuiltIns: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	productRepo := repository.NewProductRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	newsRepo := repository.NewNewsRepository(db)
	contactRepo := repository.NewContactRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	imageRepo := repository.NewImageRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("launchpad-api"),
		userRepo:       userRepo,
		notifier:       notifier,
		hub:            notifications.NewHub(),
		featureFlags:   flags,
	}

	server.adminService = service.NewAdminService(userRepo, adminRepo, contactRepo, flags, notifier)
	isAdmin := server.adminService.IsAdmin

	server.authService = service.NewAuthService(userRepo, followRepo, redisClient, cfg.JWTSecret)
	server.profileService = service.NewProfileService(userRepo, followRepo, productRepo, articleRepo)
	server.followService = service.NewFollowService(followRepo, userRepo, notifier)
	server.productService = service.NewProductService(productRepo, flags, isAdmin, notifier)
	server.engagementService = service.NewEngagementService(engagementRepo, productRepo, commentRepo, articleRepo, notifier)
	server.commentService = service.NewCommentService(commentRepo, productRepo, isAdmin, notifier)
	server.articleService = service.NewArticleService(articleRepo, isAdmin, notifier)
	server.newsService = service.NewNewsService(newsRepo, isAdmin, notifier)
	server.imageService = service.NewImageService(imageRepo, cfg)

	var m service.Mailer
	if client := mailer.New(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, cfg.ContactTo); client != nil {
		m = client
	}
	server.contactService = service.NewContactService(contactRepo, m, flags)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Media is embedded by the SPA which runs on another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())
	app.Use(middleware.TracingMiddleware())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		ExposeHeaders:    "X-Trace-ID, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	auth := s.AuthRequired()
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Launchpad Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/media/i/:hash/:file", s.ServeMedia)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/logout", auth, s.Logout)
	authGroup.Get("/me", auth, s.Me)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	products := api.Group("/products")
	products.Get("/", s.ListProducts)
	products.Post("/", auth, s.CreateProduct)
	products.Get("/slug/:slug", s.GetProductBySlug)
	products.Get("/:id/comments", s.GetComments)
	products.Post("/:id/comments", auth, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	products.Get("/:id/likes", s.GetProductLikeStatus)
	products.Post("/:id/like", auth, s.ToggleProductLike)
	products.Post("/:id/bookmark", auth, s.ToggleProductBookmark)
	products.Get("/:id", s.GetProduct)
	products.Put("/:id", auth, s.UpdateProduct)
	products.Delete("/:id", auth, s.DeleteProduct)

	comments := api.Group("/comments")
	comments.Post("/:id/like", auth, s.ToggleCommentLike)
	comments.Put("/:id", auth, s.UpdateComment)
	comments.Delete("/:id", auth, s.DeleteComment)

	articles := api.Group("/articles")
	articles.Get("/", s.ListArticles)
	articles.Post("/:id/like", auth, s.ToggleArticleLike)
	articles.Get("/:id/likes", s.GetArticleLikeStatus)
	articles.Post("/:id/bookmark", auth, s.ToggleArticleBookmark)
	articles.Get("/:slug", s.GetArticleBySlug)

	news := api.Group("/news")
	news.Get("/", s.ListNews)
	news.Get("/:id", s.GetNews)

	api.Get("/bookmarks", auth, s.GetMyBookmarks)

	users := api.Group("/users")
	users.Put("/me", auth, s.UpdateMyProfile)
	users.Get("/by-username/:username", s.GetUserByUsername)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id/products", s.GetUserProducts)
	users.Get("/:id/articles", s.GetUserArticles)
	users.Get("/:id/follow-status", auth, s.GetFollowStatus)
	users.Post("/:id/follow", auth, s.FollowUser)
	users.Delete("/:id/follow", auth, s.UnfollowUser)
	users.Get("/:id", s.GetUserProfile)

	api.Post("/contact", middleware.RateLimit(s.redis, 3, 10*time.Minute, "contact"), s.SubmitContact)

	images := api.Group("/images")
	images.Post("/upload", auth, middleware.RateLimit(s.redis, 20, time.Minute, "image_upload"), s.UploadImage)
	images.Get("/:hash/status", auth, s.GetImageStatus)

	realtime := api.Group("/realtime")
	realtime.Post("/ticket", auth, s.IssueRealtimeTicket)
	realtime.Get("/", s.realtimeUpgrade, auth, s.realtimeEnabled, s.RealtimeHandler())

	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/contact-messages", s.GetContactMessages)

	adminProducts := admin.Group("/products")
	adminProducts.Get("/", s.AdminListProducts)
	adminProducts.Post("/", s.CreateProduct)
	adminProducts.Put("/:id", s.UpdateProduct)
	adminProducts.Delete("/:id", s.DeleteProduct)

	adminArticles := admin.Group("/articles")
	adminArticles.Get("/", s.AdminListArticles)
	adminArticles.Get("/:id", s.AdminGetArticle)
	adminArticles.Post("/", s.CreateArticle)
	adminArticles.Put("/:id", s.UpdateArticle)
	adminArticles.Delete("/:id", s.DeleteArticle)

	adminNews := admin.Group("/news")
	adminNews.Get("/", s.AdminListNews)
	adminNews.Post("/", s.CreateNews)
	adminNews.Put("/:id", s.UpdateNews)
	adminNews.Delete("/:id", s.DeleteNews)

	adminUsers := admin.Group("/users")
	adminUsers.Get("/", s.AdminListUsers)
	adminUsers.Post("/:id/promote", s.PromoteUser)
	adminUsers.Post("/:id/demote", s.DemoteUser)
	adminUsers.Post("/:id/ban", s.BanUser)
	adminUsers.Post("/:id/unban", s.UnbanUser)
	adminUsers.Delete("/:id", s.AdminDeleteUser)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database and Redis are reachable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it realtime stays instance-local and sessions cannot be revoked.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)

		admin, err := s.adminService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware.
// Order: single-use WebSocket ticket, Bearer header, then ?token= for non-upgrade requests.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isUpgrade := websocket.IsWebSocketUpgrade(c)

		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.authService.RedeemWSTicket(c.UserContext(), ticket)
			if err == nil {
				return s.establishSession(c, userID, nil)
			}
			if isUpgrade {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		tokenString := middleware.BearerToken(c)
		if tokenString == "" && !isUpgrade {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		userID, err := claims.UserID()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		revoked, err := s.authService.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			// Fail open: a Redis outage should not log everyone out.
			middleware.Logger.WarnContext(c.UserContext(), "revocation check failed", slog.String("error", err.Error()))
		}
		if revoked {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		return s.establishSession(c, userID, claims)
	}
}

// establishSession confirms the account still exists and is not banned, then
// stores the caller in locals and the request context.
func (s *Server) establishSession(c *fiber.Ctx, userID uint, claims *middleware.SessionClaims) error {
	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account no longer exists"))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user.IsBanned {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is banned"))
	}

	c.Locals("userID", userID)
	if claims != nil {
		c.Locals("claims", claims)
	}
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
	return c.Next()
}

// optionalUserID attempts to extract userID from Authorization header but does not enforce it.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return 0, false
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
	if err != nil {
		return 0, false
	}
	if revoked, _ := s.authService.IsRevoked(c.UserContext(), claims.ID); revoked {
		return 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:   "Launchpad API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start realtime wiring", slog.String("error", err.Error()))
		}
	}()
	s.imageService.StartBackgroundWorker(s.shutdownCtx)

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// bodyLimit leaves headroom over the image upload limit for multipart framing.
func (s *Server) bodyLimit() int {
	mb := s.config.ImageMaxUploadSizeMB
	if mb <= 0 {
		mb = service.DefaultImageMaxUploadSizeMB
	}
	return (mb + 1) * 1024 * 1024
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down realtime hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
