package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/montygracey/mediaconverter/internal/api/handlers"
	"github.com/montygracey/mediaconverter/internal/api/middleware"
	"github.com/montygracey/mediaconverter/internal/core/event"
	"github.com/montygracey/mediaconverter/internal/core/job"
	"github.com/montygracey/mediaconverter/internal/core/service"
	"github.com/montygracey/mediaconverter/internal/core/user"
	"github.com/montygracey/mediaconverter/internal/fileserver"
)

type RouterConfig struct {
	Users       user.Store
	Jobs        job.Store
	Svc         *service.ConversionService
	Stats       *event.StatsCollector
	Signer      *fileserver.Signer
	JWTSecret   string
	JWTExpiry   time.Duration
	LinkExpiry  time.Duration
	FileBaseURL string
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")
	config := huma.DefaultConfig("MediaConverter API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/api/v1"}}
	config.Info.Description = "Convert YouTube and SoundCloud media to MP3 asynchronously"
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	handlers.InitErrors()
	hAPI := humaecho.NewWithGroup(e, v1, config)

	authMw := middleware.Auth(cfg.JWTSecret)
	bearer := []map[string][]string{{"BearerAuth": {}}}

	authHandler := handlers.NewAuthHandler(cfg.Users, cfg.Jobs, cfg.JWTSecret, cfg.JWTExpiry)
	huma.Register(hAPI, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new user",
		Tags:        []string{"Auth"},
	}, authHandler.Register)

	huma.Register(hAPI, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	huma.Register(hAPI, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Get current user info",
		Tags:        []string{"Auth"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, authHandler.Me)

	convHandler := handlers.NewConversionsHandler(cfg.Svc)
	huma.Register(hAPI, huma.Operation{
		OperationID:   "conversions-submit",
		Method:        http.MethodPost,
		Path:          "/conversions",
		Summary:       "Submit a conversion (returns immediately with status processing)",
		Tags:          []string{"Conversions"},
		Security:      bearer,
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, convHandler.Submit)

	huma.Register(hAPI, huma.Operation{
		OperationID: "conversions-list",
		Method:      http.MethodGet,
		Path:        "/conversions",
		Summary:     "List conversions, newest first",
		Tags:        []string{"Conversions"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, convHandler.List)

	huma.Register(hAPI, huma.Operation{
		OperationID: "conversions-get",
		Method:      http.MethodGet,
		Path:        "/conversions/{id}",
		Summary:     "Get conversion status",
		Tags:        []string{"Conversions"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, convHandler.Get)

	huma.Register(hAPI, huma.Operation{
		OperationID: "conversions-delete",
		Method:      http.MethodDelete,
		Path:        "/conversions/{id}",
		Summary:     "Delete a conversion",
		Tags:        []string{"Conversions"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, convHandler.Delete)

	filesHandler := handlers.NewFilesHandler(cfg.Svc, cfg.Signer, cfg.LinkExpiry, cfg.FileBaseURL)
	huma.Register(hAPI, huma.Operation{
		OperationID: "files-ready",
		Method:      http.MethodGet,
		Path:        "/files/{filename}/ready",
		Summary:     "Check whether an artifact is ready to download",
		Tags:        []string{"Files"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, filesHandler.Ready)

	huma.Register(hAPI, huma.Operation{
		OperationID: "files-generate-link",
		Method:      http.MethodPost,
		Path:        "/conversions/{id}/link",
		Summary:     "Generate an expiring download link",
		Tags:        []string{"Files"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, filesHandler.GenerateLink)

	statsHandler := handlers.NewStatsHandler(cfg.Svc, cfg.Stats)
	huma.Register(hAPI, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Conversion statistics",
		Tags:        []string{"Stats"},
		Security:    bearer,
		Middlewares: huma.Middlewares{authMw},
	}, statsHandler.Get)
}
