package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"testsmith.app/testsmith/internal/http/dto"
	"testsmith.app/testsmith/internal/service"
	"testsmith.app/testsmith/internal/store"
)

type RunHandler struct {
	service     service.RunService
	adminAPIKey string
}

func NewRunHandler(service service.RunService, adminAPIKey string) *RunHandler {
	return &RunHandler{
		service:     service,
		adminAPIKey: adminAPIKey,
	}
}

func (h *RunHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid create run request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := service.CreateRunParams{
		SourcePath:    req.SourcePath,
		GitLabProject: req.GitLabProject,
		GitLabRef:     req.GitLabRef,
		GitLabPath:    req.GitLabPath,
		OutputPath:    req.OutputPath,
		Provider:      req.Provider,
		Model:         req.Model,
		Technologies:  req.Technologies,
		Tips:          req.Tips,
		Stream:        req.Stream,
		Plan:          req.Plan,
	}

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		params.TraceID = &traceID
	}

	run, err := h.service.Create(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSource) {
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidSource.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to create run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
		return
	}

	c.JSON(http.StatusAccepted, dto.ToRunResponse(run))
}

func (h *RunHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	run, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to get run", "error", err, "run_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, dto.ToRunResponse(run))
}

func (h *RunHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	limit := int32(50)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = int32(parsed)
	}

	runs, err := h.service.ListRecent(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": dto.ToRunResponses(runs)})
}

// RequireAdminAPIKey middleware checks for valid admin API key
func (h *RunHandler) RequireAdminAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminAPIKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		apiKey := c.GetHeader("X-Admin-API-Key")
		if apiKey == "" {
			apiKey = c.GetHeader("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}

		if apiKey != h.adminAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
