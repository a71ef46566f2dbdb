package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/dkeye/AvatarCoach/internal/adapters/signal"
	"github.com/dkeye/AvatarCoach/internal/adapters/token"
	"github.com/dkeye/AvatarCoach/internal/app/orch"
	"github.com/dkeye/AvatarCoach/internal/config"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// visitorLanguage is the language kept in the visitor's cookie session.
func visitorLanguage(c *gin.Context) string {
	if v, ok := sessions.Default(c).Get(signal.LanguageKey).(string); ok {
		return v
	}
	return ""
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, tokens core.TokenSource) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("AvatarCoachSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)

	templated := false
	if cfg.Templates != "" {
		if matches, _ := filepath.Glob(cfg.Templates); len(matches) > 0 {
			r.SetFuncMap(template.FuncMap{
				// Copy lines carry inline <b> markup from the locale catalog.
				"raw": func(s string) template.HTML { return template.HTML(s) },
			})
			r.LoadHTMLGlob(cfg.Templates)
			templated = true
		}
	}

	r.GET("/", func(c *gin.Context) {
		if !templated {
			c.File(cfg.StaticPath + "/index.html")
			return
		}
		sid := core.SessionID(c.GetString("client_token"))
		c.HTML(http.StatusOK, "index.html", o.View(sid, visitorLanguage(c)))
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("templates", templated).Msg("router setup")

	api := r.Group("/api")

	api.POST("/get-access-token", token.Handler(tokens))

	api.GET("/view", func(c *gin.Context) {
		sid := core.SessionID(c.GetString("client_token"))
		c.JSON(http.StatusOK, o.View(sid, visitorLanguage(c)))
	})

	api.POST("/language", func(c *gin.Context) {
		var req struct {
			Language string `json:"language"`
		}
		if err := c.BindJSON(&req); err != nil || req.Language == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid language"})
			return
		}
		if !o.Deps.Catalog.Supported(req.Language) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language"})
			return
		}

		sid := core.SessionID(c.GetString("client_token"))
		if ctrl, ok := o.Registry.Controller(sid); ok {
			if err := ctrl.SetLanguage(req.Language); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, orch.ErrLanguageLocked) {
					status = http.StatusConflict
				}
				c.JSON(status, gin.H{"error": err.Error()})
				return
			}
		}

		sess := sessions.Default(c)
		sess.Set(signal.LanguageKey, req.Language)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
			return
		}
		c.JSON(http.StatusOK, o.View(sid, req.Language))
	})

	ws := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	return r
}
