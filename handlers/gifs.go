package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"banter-server/gifs"
)

type GifHandler struct {
	client *gifs.Client
}

func NewGifHandler(client *gifs.Client) *GifHandler {
	return &GifHandler{client: client}
}

func (h *GifHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.client.Trending(limit)
	if err != nil {
		http.Error(w, "GIF provider unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (h *GifHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.client.Search(r.URL.Query().Get("q"), limit)
	if err != nil {
		http.Error(w, "GIF provider unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
