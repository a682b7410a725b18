// Package http is the JSON API surface of the budget engine.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"questbudget/internal/advisor"
	"questbudget/internal/auth"
	"questbudget/internal/services"
)

// Server bundles the router with the services behind it.
type Server struct {
	router   *gin.Engine
	auth     *services.AuthService
	months   *services.MonthService
	tasks    *services.TaskService
	shop     *services.ShopService
	contexts *services.ContextBuilder
	coach    *advisor.Client

	debugChatContext bool
}

type Options struct {
	CORSOrigins      []string
	DebugChatContext bool
}

func NewServer(
	authService *services.AuthService,
	months *services.MonthService,
	tasks *services.TaskService,
	shop *services.ShopService,
	contexts *services.ContextBuilder,
	coach *advisor.Client,
	issuer *auth.TokenIssuer,
	opts Options,
) *Server {
	s := &Server{
		auth:             authService,
		months:           months,
		tasks:            tasks,
		shop:             shop,
		contexts:         contexts,
		coach:            coach,
		debugChatContext: opts.DebugChatContext,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.health)
	router.POST("/auth/signup", s.signup)
	router.POST("/auth/login", s.login)

	authorized := router.Group("/", requireAuth(issuer))
	authorized.POST("/month/start", s.monthStart)
	authorized.GET("/month/state", s.monthState)

	authorized.POST("/tasks/template", s.createTemplate)
	authorized.POST("/tasks/generate", s.generateTasks)
	authorized.GET("/tasks/instances", s.listInstances)
	authorized.POST("/tasks/instances/:id/complete", s.completeInstance)
	authorized.POST("/tasks/instances/:id/skip", s.skipInstance)

	authorized.POST("/shop/item", s.createShopItem)
	authorized.GET("/shop/items", s.listShopItems)
	authorized.POST("/shop/purchase/:id", s.purchase)

	authorized.POST("/chat/message", s.chatMessage)
	authorized.POST("/chat/spend_advice", s.chatSpendAdvice)
	authorized.GET("/chat/context", s.chatContext)

	s.router = router
	return s
}

// Router exposes the underlying handler for serving and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
