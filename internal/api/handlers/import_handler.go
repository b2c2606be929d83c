package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/restock-forecast/internal/ingest"
)

type Importer interface {
	Import(ctx context.Context, kind ingest.Kind, name string, r io.Reader) (*ingest.Summary, error)
}

type ImportHandler struct {
	importer Importer
}

func NewImportHandler(importer Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Upload imports sale or item exports sent as multipart "files".
// The kind comes from the :kind path segment (sales or items).
func (h *ImportHandler) Upload(c *gin.Context) {
	kind, err := ingest.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	summaries := make([]*ingest.Summary, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("failed to open uploaded file")
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file", "file": file.Filename})
			return
		}

		summary, err := h.importer.Import(c.Request.Context(), kind, filepath.Base(file.Filename), f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "import failed", "file": file.Filename, "details": err.Error()})
			return
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"imports": summaries})
}
