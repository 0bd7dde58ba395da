package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"banter-server/middleware"
)

// FileHandler hosts uploaded media locally, answering with the upload
// contract the clients expect from the hosted media service: url,
// resource type, format and (for audio/video) duration.
type FileHandler struct {
	uploadDir string
}

type UploadResponse struct {
	URL          string  `json:"url"`
	ResourceType string  `json:"resource_type"` // image, video, audio
	Format       string  `json:"format"`
	Duration     float64 `json:"duration,omitempty"`
	Size         int64   `json:"size"`
}

func NewFileHandler(uploadDir string) *FileHandler {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		panic(fmt.Sprintf("Failed to create upload directory: %v", err))
	}
	return &FileHandler{uploadDir: uploadDir}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Parse multipart form (max 25MB; voice notes and short clips)
	if err := r.ParseMultipartForm(25 << 20); err != nil {
		http.Error(w, "File too large (max 25MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	resourceType := resourceTypeFor(contentType)
	if resourceType == "" {
		http.Error(w, "File type not allowed. Supported: images, video, audio", http.StatusBadRequest)
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	randBytes := make([]byte, 16)
	rand.Read(randBytes)
	filename := hex.EncodeToString(randBytes)
	if ext != "" {
		filename += "." + ext
	}

	dst, err := os.Create(filepath.Join(h.uploadDir, filename))
	if err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(filepath.Join(h.uploadDir, filename))
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	// Duration is client-measured; media probing is not worth a
	// transcode dependency here.
	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{
		URL:          "/api/files/" + filename,
		ResourceType: resourceType,
		Format:       ext,
		Duration:     duration,
		Size:         size,
	})
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		http.Error(w, "Filename required", http.StatusBadRequest)
		return
	}

	// Prevent directory traversal
	filename = filepath.Base(filename)
	path := filepath.Join(h.uploadDir, filename)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000")
	http.ServeFile(w, r, path)
}

func resourceTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	}
	return ""
}
