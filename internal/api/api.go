// Package api is the operator-facing HTTP surface over the registry, the
// command mailbox and the reset flags.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/bedctl/internal/mailbox"
	"github.com/danmuck/bedctl/internal/observability"
	"github.com/danmuck/bedctl/internal/protocol"
	"github.com/danmuck/bedctl/internal/registry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

// Deps are the shared structures the API reads and mutates.
type Deps struct {
	Registry *registry.Registry
	Mailbox  *mailbox.Mailbox
	Resets   *mailbox.ResetFlags
	Clock    clockwork.Clock
}

type API struct {
	ID      string
	Started time.Time

	registry *registry.Registry
	mailbox  *mailbox.Mailbox
	resets   *mailbox.ResetFlags
	clock    clockwork.Clock
	router   *gin.Engine
}

type commandRequest struct {
	Bed    string `json:"bed"`
	Action string `json:"action"`
	DataOn string `json:"dataOn"`
}

type resetRequest struct {
	Ativo  string `json:"ativo"`
	Quarto string `json:"quarto"`
}

// New builds the engine and registers every route.
func New(id string, deps Deps, corsOrigins []string) *API {
	observability.RegisterMetrics()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("bedctl.api"), id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &API{
		ID:       id,
		Started:  deps.Clock.Now(),
		registry: deps.Registry,
		mailbox:  deps.Mailbox,
		resets:   deps.Resets,
		clock:    deps.Clock,
		router:   r,
	}
	a.registerRoutes()
	return a
}

func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  a.uptime(),
			"node":    a.ID,
			"version": version,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  a.uptime(),
			"node":    a.ID,
			"version": version,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.registry.Snapshot())
	})

	a.router.GET("/tags/:tag", func(c *gin.Context) {
		tag := c.Param("tag")
		info, ok := a.registry.Locate(tag)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ativo":  tag,
			"quarto": info.Room,
			"dataOn": info.DataOn,
			"state":  info.State,
			"reset":  a.resets.PendingFor(tag),
		})
	})

	a.router.POST("/command", func(c *gin.Context) {
		var req commandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ReasonInvalidPayload})
			return
		}
		req.Bed = strings.TrimSpace(req.Bed)
		req.Action = strings.TrimSpace(req.Action)
		if req.Bed == "" || req.Action == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ReasonIncompletePayload})
			return
		}
		if req.DataOn == "" {
			req.DataOn = protocol.FormatTimestamp(a.clock.Now())
		} else if _, err := protocol.ParseTimestamp(req.DataOn); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ReasonInvalidTimestamp})
			return
		}

		cmd := a.mailbox.Enqueue(req.Bed, req.Action, req.DataOn)
		c.JSON(http.StatusOK, gin.H{
			"status": protocol.StatusQueued,
			"bed":    cmd.Tag,
			"action": cmd.Action,
			"dataOn": cmd.DataOn,
		})
	})

	a.router.GET("/commands", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"commands": a.mailbox.Pending()})
	})

	a.router.POST("/reset", func(c *gin.Context) {
		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ReasonInvalidPayload})
			return
		}
		tag := strings.TrimSpace(req.Ativo)
		if tag == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ReasonIncompletePayload})
			return
		}
		room := strings.TrimSpace(req.Quarto)
		a.resets.Request(room, tag)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ativo": tag, "quarto": room})
	})

	a.router.GET("/resets", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resets": a.resets.Pending()})
	})

	a.router.POST("/registry/reset", func(c *gin.Context) {
		a.registry.Reset()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (a *API) uptime() string {
	return a.clock.Since(a.Started).String()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
