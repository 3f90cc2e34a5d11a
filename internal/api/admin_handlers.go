package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/report"
	"github.com/digkill/photostudio/internal/service"
)

const templateFolder = "templates"

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Payments.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"stats": stats})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"users": nonNil(users)})
}

type adjustCreditsRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req adjustCreditsRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.deps.Users.AdjustCredits(r.Context(), id, req.Delta)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("credits adjusted by admin", "user_id", id, "delta", req.Delta, "balance", balance)
	s.writeJSON(w, http.StatusOK, envelope{"credits": balance})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Payments.List(r.Context(), models.PaymentStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payments": nonNil(list)})
}

func (s *Server) handleExportPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Payments.List(r.Context(), models.PaymentStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WritePayments(&buf, list); err != nil {
		s.fail(w, r, err)
		return
	}
	filename := fmt.Sprintf("payments-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleMarkSent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Payments.MarkSent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payment": p})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Payments.Confirm(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payment": p})
}

type rejectRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	// The note is optional, so an empty body is accepted.
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	p, err := s.deps.Payments.Reject(r.Context(), id, req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payment": p})
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Payments.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"settings": settings})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.Settings
	if !s.decode(w, r, &req) {
		return
	}
	settings, err := s.deps.Settings.Update(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("settings updated", "payments_enabled", settings.PaymentsEnabled)
	s.writeJSON(w, http.StatusOK, envelope{"settings": settings})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.readFormFile(w, r, "image")
	if !ok {
		return
	}
	ctx := r.Context()
	imageURL, err := s.deps.Uploader.Upload(ctx, data, contentType, templateFolder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	isHit, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue("is_hit")))
	tpl, err := s.deps.Templates.Create(ctx, service.CreateTemplateInput{
		Name:     r.FormValue("name"),
		Prompt:   r.FormValue("prompt"),
		Category: r.FormValue("category"),
		ImageURL: imageURL,
		IsHit:    isHit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{"template": tpl})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Templates.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}
