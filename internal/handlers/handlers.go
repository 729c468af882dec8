package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/image-classify/internal/auth"
	"github.com/example/image-classify/internal/classify"
	"github.com/example/image-classify/internal/logging"
	"github.com/example/image-classify/internal/usecase"
)

// MaxUploadSize bounds the accepted image payload.
const MaxUploadSize = 10 << 20

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, uc *usecase.ClassificationUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := router.Group("/", authMiddleware)

	authed.POST("/classify", func(c *gin.Context) {
		ownerID, ok := auth.GetOwnerID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "owner identity missing"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		if contentType := file.Header.Get("Content-Type"); contentType != "" && !allowedContentTypes[contentType] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}

		orientation := classify.OrientationUp
		if raw := c.PostForm("orientation"); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || !classify.Orientation(value).Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "orientation must be an EXIF value 1-8"})
				return
			}
			orientation = classify.Orientation(value)
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}
		if len(data) > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}

		requestID, results, err := uc.ClassifyImage(c.Request.Context(), ownerID, data, orientation)
		if err != nil {
			var opErr *logging.OperationError
			if errors.As(err, &opErr) && opErr.Operation == "usecase.decode_image" {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "image could not be decoded"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "classification failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":  requestID,
			"predictions": results,
		})
	})

	authed.GET("/result/:id", func(c *gin.Context) {
		ownerID, ok := auth.GetOwnerID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "owner identity missing"})
			return
		}
		requestID := c.Param("id")

		log, err := uc.GetResult(c.Request.Context(), ownerID, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":     log.RequestID,
			"owner_id":       log.OwnerID,
			"top_label":      log.TopLabel,
			"top_confidence": log.TopConfidence,
			"result_count":   log.ResultCount,
			"labels":         log.Labels,
			"latency_ms":     log.LatencyMs,
			"created_at":     log.CreatedAt,
		})
	})

	authed.GET("/result/:id/duplicates", func(c *gin.Context) {
		ownerID, ok := auth.GetOwnerID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "owner identity missing"})
			return
		}
		requestID := c.Param("id")

		report, err := uc.GetDuplicateReport(c.Request.Context(), ownerID, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build duplicate report"})
			return
		}

		duplicates := make([]gin.H, 0, len(report.Duplicates))
		for _, dup := range report.Duplicates {
			duplicates = append(duplicates, gin.H{
				"request_id": dup.RequestID,
				"created_at": dup.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id": report.Request.RequestID,
			"sha1_hash":  report.Request.SHA1Hash,
			"duplicates": duplicates,
		})
	})

	authed.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}
