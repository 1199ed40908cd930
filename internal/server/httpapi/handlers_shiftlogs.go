package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiftworks/linetrack/internal/common"
	"github.com/shiftworks/linetrack/internal/server/models"
	"github.com/shiftworks/linetrack/internal/server/services"
)

type shiftLogRequest struct {
	Line     string `json:"line"`
	Shift    string `json:"shift"`
	BagColor string `json:"bagColor"`
	BagSize  string `json:"bagSize"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

type shiftLogPayload struct {
	ID            string    `json:"id"`
	Line          string    `json:"line"`
	Shift         string    `json:"shift"`
	BagColor      string    `json:"bagColor"`
	BagSize       string    `json:"bagSize"`
	Quantity      int       `json:"quantity"`
	Note          string    `json:"note,omitempty"`
	AttachmentKey string    `json:"attachmentKey,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toShiftLogPayload(l *models.ShiftLog) *shiftLogPayload {
	return &shiftLogPayload{
		ID:            l.ID,
		Line:          l.Line,
		Shift:         l.Shift,
		BagColor:      l.BagColor,
		BagSize:       l.BagSize,
		Quantity:      l.Quantity,
		Note:          l.Note,
		AttachmentKey: l.AttachmentKey,
		CreatedBy:     l.CreatedBy,
		CreatedAt:     l.CreatedAt,
	}
}

func (s *Server) handleListShiftLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.shiftLogs.List(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "shift log list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	payload := make([]*shiftLogPayload, 0, len(logs))
	for _, l := range logs {
		payload = append(payload, toShiftLogPayload(l))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateShiftLog(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	var req shiftLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	in := services.ShiftLogInput{
		Line:     req.Line,
		Shift:    req.Shift,
		BagColor: req.BagColor,
		BagSize:  req.BagSize,
		Quantity: req.Quantity,
		Note:     req.Note,
	}
	created, err := s.shiftLogs.Create(r.Context(), &in, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		s.log.Error(r.Context(), "shift log create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, toShiftLogPayload(created))
}

func (s *Server) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	shiftLogID := chi.URLParam(r, "shiftLogID")

	url, err := s.attachments.PresignUpload(r.Context(), shiftLogID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.log.Error(r.Context(), "attachment presign failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handlePresignDownload(w http.ResponseWriter, r *http.Request) {
	shiftLogID := chi.URLParam(r, "shiftLogID")

	url, err := s.attachments.PresignDownload(r.Context(), shiftLogID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		s.log.Error(r.Context(), "attachment presign failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
