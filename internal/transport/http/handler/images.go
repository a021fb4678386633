package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buxmate/buxmate/internal/application/image"
	"github.com/buxmate/buxmate/internal/transport/http/middleware"
)

const maxCoverSize = 10 << 20 // 10 MiB

// ImageHandler handles event cover image endpoints.
type ImageHandler struct {
	svc image.Service
}

func NewImageHandler(svc image.Service) *ImageHandler { return &ImageHandler{svc: svc} }

// UploadCover accepts a multipart upload and sets it as the event's cover.
func (h *ImageHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	img, err := h.svc.UploadCover(r.Context(), image.UploadInput{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		EventID:     chi.URLParam(r, "id"),
		UploaderID:  claims.UserID,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

// CoverURL returns a short-lived presigned URL for the image.
func (h *ImageHandler) CoverURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.CoverURL(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Delete(r.Context(), claims.UserID, chi.URLParam(r, "imageID")); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "image deleted"})
}
