package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/spokies-backend/internal/apperrors"
	"github.com/AnshRaj112/spokies-backend/internal/models"
)

const (
	maxRegisterBody = 32 << 20
	maxFormMemory   = 8 << 20
	maxPhotos       = 6
	maxPhotoSize    = 5 << 20
	uploadTimeout   = 30 * time.Second
)

type registerResponse struct {
	Message    string `json:"message"`
	TelegramID string `json:"telegram_id"`
}

// Register handles the multipart sign-up form. List fields arrive as JSON
// encoded strings; photos arrive as repeated "photos" parts.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRegisterBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, apperrors.BadInput("Upload is too large"))
			return
		}
		h.writeError(w, r, apperrors.BadInput("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	reg, err := parseRegistration(r.MultipartForm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	photos, err := readPhotos(r.MultipartForm.File["photos"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// photo uploads get a longer deadline than plain store calls
	ctx, cancel := context.WithTimeout(r.Context(), max(h.timeout, uploadTimeout))
	defer cancel()

	u, err := h.users.Register(ctx, reg, photos)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{
		Message:    "User registered successfully!",
		TelegramID: u.TelegramID,
	})
}

func parseRegistration(form *multipart.Form) (models.Registration, error) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	reg := models.Registration{
		TelegramID:  value("telegram_id"),
		Name:        value("name"),
		Gender:      value("gender"),
		Orientation: value("orientation"),
		Bio:         value("bio"),
	}

	rawAge := value("age")
	if rawAge == "" {
		return reg, apperrors.BadInput("age is required")
	}
	age, err := strconv.Atoi(rawAge)
	if err != nil {
		return reg, apperrors.BadInput("age must be a number")
	}
	reg.Age = age

	if err := jsonField(value("interested_in"), &reg.InterestedIn); err != nil {
		return reg, err
	}
	if err := jsonField(value("relationship_type"), &reg.RelationshipType); err != nil {
		return reg, err
	}
	if err := jsonField(value("selectedSpokies"), &reg.TraitTags); err != nil {
		return reg, err
	}
	return reg, nil
}

// jsonField decodes a form value carrying a JSON array. Empty values are left unset.
func jsonField(raw string, dst any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return apperrors.BadInput("Invalid JSON format: " + err.Error())
	}
	return nil
}

func readPhotos(files []*multipart.FileHeader) ([]models.Photo, error) {
	photos := make([]models.Photo, 0, len(files))
	for _, fh := range files {
		// browsers send an empty part when no file is picked
		if fh.Filename == "" || fh.Size == 0 {
			continue
		}
		if len(photos) == maxPhotos {
			return nil, apperrors.BadInput("At most " + strconv.Itoa(maxPhotos) + " photos are allowed")
		}
		if fh.Size > maxPhotoSize {
			return nil, apperrors.BadInput("Photo " + fh.Filename + " is too large")
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, apperrors.BadInput("Could not read photo " + fh.Filename)
		}
		photos = append(photos, models.Photo{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return photos, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
