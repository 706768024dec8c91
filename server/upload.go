package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// allowedUploadTypes is the attachment MIME allow-list.
var allowedUploadTypes = map[string]bool{
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"image/webp":       true,
	"application/pdf":  true,
	"text/plain":       true,
	"text/csv":         true,
	"application/json": true,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
}

// uploadResponse is the success body for POST /api/upload.
type uploadResponse struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// handleUpload accepts one multipart file, validates type and size,
// and writes it under the configured upload directory. Validation
// failures aggregate into one comma-joined 400 message; a missing
// upload directory is a distinct 500 so operators can tell
// misconfiguration from transient failure.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.UploadDir == "" {
		writeError(w, http.StatusInternalServerError, "upload storage is not configured")
		return
	}

	// Allow some slack past the limit so a moderately oversized file
	// still parses and gets a proper validation message.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes + (1 << 20)); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	var problems []string
	contentType := header.Header.Get("Content-Type")
	if mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0]); !allowedUploadTypes[mediaType] {
		problems = append(problems, fmt.Sprintf("file type %q is not allowed", mediaType))
	}
	if header.Size > s.cfg.MaxUploadBytes {
		problems = append(problems, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxUploadBytes))
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, strings.Join(problems, ", "))
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "upload storage rejected the write")
		return
	}

	name := uuid.NewString() + "-" + filepath.Base(header.Filename)
	dst, err := os.Create(filepath.Join(s.cfg.UploadDir, name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "upload storage rejected the write")
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		writeError(w, http.StatusInternalServerError, "upload storage rejected the write")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		URL:         "/uploads/" + name,
		Name:        header.Filename,
		ContentType: contentType,
	})
}
