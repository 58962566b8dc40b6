package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/registry"
	"plant-diagnosis-pipeline/service"
)

// maxUploadBytes bounds one diagnosis request's multipart payload.
const maxUploadBytes = 32 << 20

// Handlers represents the HTTP handlers
type Handlers struct {
	diagnosis *service.Service
	registry  *registry.Registry
}

// NewHandlers creates new HTTP handlers
func NewHandlers(diagnosis *service.Service, reg *registry.Registry) *Handlers {
	return &Handlers{diagnosis: diagnosis, registry: reg}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "plant-diagnosis-pipeline",
	})
}

// GetProviders returns the registry snapshot for ops visibility.
func (h *Handlers) GetProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": h.registry.Snapshot(),
	})
}

// Diagnose accepts multipart form images plus optional "mode" and
// "crop" fields and returns one DiagnosisResult.
func (h *Handlers) Diagnose(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to parse multipart form",
		})
		return
	}

	form := c.Request.MultipartForm
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No image files provided. Use 'images' as the form field name",
		})
		return
	}

	var images [][]byte
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read uploaded file",
			})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Failed to read uploaded file",
			})
			return
		}
		images = append(images, data)
	}

	opts := service.DiagnoseOptions{
		Mode:     c.PostForm("mode"),
		CropHint: c.PostForm("crop"),
	}

	result, err := h.diagnosis.Diagnose(c.Request.Context(), images, opts)
	if err != nil {
		status := http.StatusBadGateway
		var invalidImage *models.InvalidImageError
		if errors.As(err, &invalidImage) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
