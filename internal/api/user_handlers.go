package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/digkill/photostudio/internal/service"
	"github.com/digkill/photostudio/internal/storage"
)

const maxUploadBytes = 15 << 20

type googleAuthRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ctx := r.Context()
	identity, err := s.deps.Verifier.Verify(ctx, req.Token)
	if err != nil {
		s.log.Warn("google token rejected", "err", err)
		s.writeError(w, http.StatusUnauthorized, "invalid google token")
		return
	}
	user, created, err := s.deps.Users.Ensure(ctx, identity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, expiresAt, err := s.deps.Sessions.Issue(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if created {
		s.log.Info("user registered", "user_id", user.ID, "email", user.Email)
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": user, "token": token, "expiresAt": expiresAt, "created": created})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.Get(r.Context(), userID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"user": user})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Generations.List(r.Context(), userID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"generations": nonNil(list)})
}

type generationRequest struct {
	service.GenerationRequest
	NumImages *int `json:"numImages"`
}

func (s *Server) handleCreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req generationRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := req.GenerationRequest
	in.NumImages = 1
	if req.NumImages != nil {
		in.NumImages = *req.NumImages
	}

	res, err := s.deps.Generations.Submit(r.Context(), userID(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"generation": res.Generation, "credits": res.Credits})
}

func (s *Server) handleDeleteGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Generations.Delete(r.Context(), userID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Training.List(r.Context(), userID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"models": nonNil(list)})
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req service.TrainingRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.Training.Submit(r.Context(), userID(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"model": res.Model, "credits": res.Credits})
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Training.Delete(r.Context(), userID(r.Context()), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, contentType, ok := s.readFormFile(w, r, "file")
	if !ok {
		return
	}
	url, err := s.deps.Uploader.Upload(r.Context(), data, contentType, storage.UserFolder(userID(r.Context())))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"url": url})
}

// readFormFile reads one multipart file field, writing the error response itself.
func (s *Server) readFormFile(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, field+" is required")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read upload")
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}

func (s *Server) handleListMyPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Payments.ListForUser(r.Context(), userID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payments": nonNil(list)})
}

type createPaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Crystals   int             `json:"crystals"`
	KaspiPhone string          `json:"kaspiPhone"`
	KaspiName  string          `json:"kaspiName"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.deps.Payments.Create(r.Context(), userID(r.Context()), service.CreatePaymentInput{
		Amount:     req.Amount,
		Crystals:   req.Crystals,
		PayerPhone: req.KaspiPhone,
		PayerName:  req.KaspiName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payment": p})
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Payments.MarkPaid(r.Context(), userID(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"payment": p})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Templates.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"templates": nonNil(list)})
}

func (s *Server) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.deps.Settings.Get(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{"paymentsEnabled": settings.PaymentsEnabled})
}

// handleProviderCallback always acknowledges so the provider does not retry.
func (s *Server) handleProviderCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.log.Warn("provider callback unreadable", "err", err)
	} else if err := s.deps.Webhooks.Handle(r.Context(), r.URL.Query(), body); err != nil {
		s.log.Warn("provider callback ignored", "type", r.URL.Query().Get("type"), "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
