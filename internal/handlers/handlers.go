// Package handlers is the HTTP surface of the service: a small REST API for
// the operator frontend plus the websocket observer endpoint.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

type Handlers struct {
	store      *store.Store
	registry   *botfeature.Registry
	hub        *events.Hub
	dispatcher *events.Dispatcher
	logger     logging.Logger
}

func New(st *store.Store, registry *botfeature.Registry, hub *events.Hub, dispatcher *events.Dispatcher, logger logging.Logger) *Handlers {
	return &Handlers{
		store:      st,
		registry:   registry,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterRoutes wires all endpoints onto the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		h.hub.ServeWS(c.Writer, c.Request)
	})

	api := router.Group("/api")
	{
		api.GET("/providers", h.ListProviders)
		api.GET("/bots", h.ListBots)
		api.GET("/bots/:id/features", h.ListBotFeatures)
		api.POST("/bots/:id/features/:type/reset", h.ResetBotFeature)
		api.GET("/bots/:id/posts", h.ListBotPosts)
		api.POST("/bots/:id/posts", h.CreateManualPost)
		api.GET("/stats", h.Stats)
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "tweetagent"})
}

func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"observers": h.hub.ClientCount()})
}

func (h *Handlers) ListProviders(c *gin.Context) {
	providers := h.registry.Providers()
	out := make([]gin.H, 0, len(providers))
	for _, provider := range providers {
		out = append(out, gin.H{
			"type":           provider.Type,
			"group":          provider.Group,
			"title":          provider.Title,
			"description":    provider.Description,
			"default_config": provider.DefaultConfig,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListBots(c *gin.Context) {
	bots, err := h.store.ListBots(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bots"})
		return
	}
	c.JSON(http.StatusOK, bots)
}

func (h *Handlers) ListBotFeatures(c *gin.Context) {
	records, err := h.store.ListFeatureRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list bot features")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list features"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// ResetBotFeature restores a feature record to the provider defaults. The
// running scheduler picks the change up on its next bundle rebuild.
func (h *Handlers) ResetBotFeature(c *gin.Context) {
	provider, err := h.registry.Provider(c.Param("type"))
	if errors.Is(err, botfeature.ErrUnknownFeature) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feature type"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve feature type"})
		return
	}

	record, err := h.store.GetFeatureRecord(c.Request.Context(), c.Param("id"), provider.Type)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "feature record not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load feature record")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feature record"})
		return
	}

	config := botfeature.MergeAndPrune(provider.DefaultConfig, nil)
	if err := h.store.UpdateFeatureConfig(c.Request.Context(), record.ID, config); err != nil {
		h.logger.WithError(err).Error("Failed to reset feature config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset feature config"})
		return
	}
	record.Config = config
	h.dispatcher.Emit(events.TopicFeature, "reset", record)
	c.JSON(http.StatusOK, record)
}

func (h *Handlers) ListBotPosts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	var parent *string
	if value := c.Query("parent"); value != "" {
		parent = &value
	}

	posts, err := h.store.ListPosts(c.Request.Context(), c.Param("id"), parent, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list posts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

type createPostRequest struct {
	Text     string  `json:"text" binding:"required"`
	AuthorID string  `json:"author_id"`
	ParentID *string `json:"parent_platform_id"`
}

// CreateManualPost injects a simulated post, as if it had been fetched from
// the platform. The reply pipeline treats it like any other unhandled post,
// which makes it the main way to exercise a bot without platform credentials.
func (h *Handlers) CreateManualPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	bot, err := h.store.GetBot(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load bot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bot"})
		return
	}

	authorID := req.AuthorID
	if authorID == "" {
		authorID = "manual-user"
	}
	if _, err := h.store.EnsureAccount(c.Request.Context(), authorID, authorID); err != nil {
		h.logger.WithError(err).Error("Failed to ensure account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ensure account"})
		return
	}

	platformID := "simulated-" + uuid.NewString()
	post, err := h.store.CreatePost(c.Request.Context(), store.CreatePostParams{
		BotID:          bot.ID,
		AuthorID:       authorID,
		Text:           req.Text,
		PlatformPostID: &platformID,
		ParentPostID:   req.ParentID,
		IsSimulated:    true,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to create manual post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	h.dispatcher.Emit(events.TopicPost, "created", post)
	c.JSON(http.StatusCreated, post)
}
