// Package httpapi exposes the auth and task APIs over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/health"
	identityservice "task-tracker/backend/internal/identity/service"
	"task-tracker/backend/internal/logging"
	taskdomain "task-tracker/backend/internal/task/domain"
	taskservice "task-tracker/backend/internal/task/service"
	userdomain "task-tracker/backend/internal/user/domain"
)

// Authenticator validates the token pair a request carries.
type Authenticator interface {
	Authenticate(ctx context.Context, creds identityservice.Credentials) (*userdomain.User, error)
}

// AuthService is the subset of identity/service.AuthService the handlers use.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, username, password string) (*userdomain.User, error)
	Login(ctx context.Context, username, password string) (*identityservice.TokenPair, error)
	Logout(ctx context.Context, creds identityservice.Credentials) error
	Refresh(ctx context.Context, refreshToken string) (*identityservice.TokenPair, error)
}

// TaskService is the subset of task/service.TaskService the handlers use.
type TaskService interface {
	Create(ctx context.Context, userID string, in taskservice.CreateInput) (*taskdomain.Task, error)
	List(ctx context.Context, userID string, filter taskdomain.ListFilter) ([]*taskdomain.Task, error)
	Get(ctx context.Context, userID, id string) (*taskdomain.Task, error)
	Update(ctx context.Context, userID, id string, patch taskdomain.Patch) (*taskdomain.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// Deps holds the router dependencies. Auth and Tasks are required.
type Deps struct {
	Auth   AuthService
	Tasks  TaskService
	Health *health.Checker
	// Metrics is optional; when nil no request metrics are collected and /metrics is not served.
	Metrics *Metrics
	Logger  logging.Logger
	// CookieSecure sets the Secure flag on auth cookies.
	CookieSecure bool
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// CORSOrigins lists browser origins allowed to send credentialed requests. Empty disables CORS.
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	log := deps.Logger.With("module", "http")

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestInfo(), requestLogger(log))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if len(deps.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = deps.CORSOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", RefreshTokenHeader, requestIDHeader)
		corsConfig.ExposeHeaders = []string{requestIDHeader}
		router.Use(cors.New(corsConfig))
	}

	h := &handlers{
		auth:    deps.Auth,
		tasks:   deps.Tasks,
		health:  deps.Health,
		cookies: cookieJar{secure: deps.CookieSecure, accessTTL: deps.AccessTTL, refreshTTL: deps.RefreshTTL},
		log:     log,
	}

	router.GET("/health", h.healthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	authGroup := router.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/logout", h.logout)
	authGroup.POST("/refresh", h.refresh)
	authGroup.GET("/me", RequireSession(deps.Auth), h.me)

	taskGroup := router.Group("/tasks", RequireSession(deps.Auth))
	taskGroup.POST("", h.createTask)
	taskGroup.GET("", h.listTasks)
	taskGroup.GET("/:id", h.getTask)
	taskGroup.PUT("/:id", h.updateTask)
	taskGroup.PATCH("/:id", h.updateTask)
	taskGroup.DELETE("/:id", h.deleteTask)

	return router
}

type handlers struct {
	auth    AuthService
	tasks   TaskService
	health  *health.Checker
	cookies cookieJar
	log     logging.Logger
}

func (h *handlers) healthCheck(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
