package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/digkill/photostudio/internal/callback"
	"github.com/digkill/photostudio/internal/config"
	"github.com/digkill/photostudio/internal/models"
	"github.com/digkill/photostudio/internal/service"
)

type UserService interface {
	Ensure(ctx context.Context, id service.Identity) (*models.User, bool, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	AdjustCredits(ctx context.Context, id int64, delta int) (int, error)
}

type GenerationService interface {
	Submit(ctx context.Context, userID int64, req service.GenerationRequest) (*service.GenerationResult, error)
	List(ctx context.Context, userID int64) ([]models.Generation, error)
	Delete(ctx context.Context, userID, id int64) error
}

type TrainingService interface {
	Submit(ctx context.Context, userID int64, req service.TrainingRequest) (*service.TrainingResult, error)
	List(ctx context.Context, userID int64) ([]models.TrainedModel, error)
	Delete(ctx context.Context, userID, id int64) error
}

type WebhookHandler interface {
	Handle(ctx context.Context, query url.Values, body []byte) error
}

type PaymentService interface {
	Create(ctx context.Context, userID int64, input service.CreatePaymentInput) (*models.PaymentRequest, error)
	MarkPaid(ctx context.Context, userID, id int64) (*models.PaymentRequest, error)
	MarkSent(ctx context.Context, id int64) (*models.PaymentRequest, error)
	Confirm(ctx context.Context, id int64) (*models.PaymentRequest, error)
	Reject(ctx context.Context, id int64, note string) (*models.PaymentRequest, error)
	Delete(ctx context.Context, id int64) error
	ListForUser(ctx context.Context, userID int64) ([]models.PaymentRequest, error)
	List(ctx context.Context, status models.PaymentStatus) ([]models.PaymentRequest, error)
	Stats(ctx context.Context) (models.PaymentStats, error)
}

type SettingsService interface {
	Get(ctx context.Context) (service.Settings, error)
	Update(ctx context.Context, settings service.Settings) (service.Settings, error)
}

type TemplateService interface {
	List(ctx context.Context) ([]models.Template, error)
	Create(ctx context.Context, input service.CreateTemplateInput) (*models.Template, error)
	Delete(ctx context.Context, id int64) error
}

// IdentityVerifier turns a client-supplied ID token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (service.Identity, error)
}

type Sessions interface {
	Issue(userID int64) (string, time.Time, error)
	Parse(token string) (int64, error)
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType, folder string) (string, error)
}

// Deps groups the collaborators the HTTP layer dispatches to.
type Deps struct {
	Users       UserService
	Generations GenerationService
	Training    TrainingService
	Webhooks    WebhookHandler
	Payments    PaymentService
	Settings    SettingsService
	Templates   TemplateService
	Verifier    IdentityVerifier
	Sessions    Sessions
	Uploader    Uploader
}

type Server struct {
	addr         string
	username     string
	password     string
	writeTimeout time.Duration
	log          *slog.Logger
	deps         Deps
	router       *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	writeTimeout := cfg.RequestTimeout + 10*time.Second
	if cfg.RequestTimeout <= 0 {
		writeTimeout = 70 * time.Second
	}

	s := &Server{
		addr:         cfg.ListenAddr,
		username:     cfg.AdminUsername,
		password:     cfg.AdminPassword,
		writeTimeout: writeTimeout,
		log:          log,
		deps:         deps,
		router:       r,
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/google", s.handleGoogleAuth)
		api.Get("/templates", s.handleListTemplates)
		api.Get("/settings/public", s.handlePublicSettings)
		api.Post(strings.TrimPrefix(callback.Path, "/api"), s.handleProviderCallback)

		api.Group(func(user chi.Router) {
			user.Use(s.sessionMiddleware)
			user.Get("/me", s.handleMe)
			user.Route("/generations", func(r chi.Router) {
				r.Get("/", s.handleListGenerations)
				r.Post("/", s.handleCreateGeneration)
				r.Delete("/{id}", s.handleDeleteGeneration)
			})
			user.Route("/models", func(r chi.Router) {
				r.Get("/", s.handleListModels)
				r.Post("/", s.handleCreateModel)
				r.Delete("/{id}", s.handleDeleteModel)
			})
			user.Post("/uploads", s.handleUpload)
			user.Route("/payments", func(r chi.Router) {
				r.Get("/", s.handleListMyPayments)
				r.Post("/", s.handleCreatePayment)
				r.Post("/{id}/mark-paid", s.handleMarkPaid)
			})
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.basicAuthMiddleware())
			admin.Get("/stats", s.handleStats)
			admin.Get("/users", s.handleListUsers)
			admin.Post("/users/{id}/credits", s.handleAdjustCredits)
			admin.Route("/payments", func(r chi.Router) {
				r.Get("/", s.handleListPayments)
				r.Get("/export", s.handleExportPayments)
				r.Post("/{id}/mark-sent", s.handleMarkSent)
				r.Post("/{id}/confirm", s.handleConfirm)
				r.Post("/{id}/reject", s.handleReject)
				r.Delete("/{id}", s.handleDeletePayment)
			})
			admin.Get("/settings", s.handleGetSettings)
			admin.Put("/settings", s.handleUpdateSettings)
			admin.Post("/templates", s.handleCreateTemplate)
			admin.Delete("/templates/{id}", s.handleDeleteTemplate)
		})
	})
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("http server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{"status": "ok", "time": time.Now().UTC()})
}
