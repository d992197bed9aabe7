package http

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/auth"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	AllowedOrigins []string
	// AppID is echoed in auth responses so clients can show the deployment.
	AppID string
}

// NewRouter mounts the REST and WebSocket endpoints.
func NewRouter(service *app.PracticeService, gate *auth.Gate, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	authHandler := NewAuthHandler(gate, cfg.AppID)
	r.POST("/v1/auth/anonymous", authHandler.Anonymous)
	r.POST("/v1/auth/token", authHandler.CustomToken)
	r.POST("/v1/auth/signout", authHandler.SignOut)

	practice := NewPracticeHandler(service)
	v1 := r.Group("/v1", auth.RequireSession(gate))
	v1.GET("/voices", practice.Voices)
	v1.GET("/sets/:id", practice.Set)

	ws := NewWSHandler(service, originChecker(origins))
	r.GET("/ws", auth.RequireSession(gate), ws.ServeWS)
	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
