package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	activityapp "github.com/buxmate/buxmate/internal/application/activity"
	"github.com/buxmate/buxmate/internal/application/audit"
	contactapp "github.com/buxmate/buxmate/internal/application/contact"
	eventapp "github.com/buxmate/buxmate/internal/application/event"
	imageapp "github.com/buxmate/buxmate/internal/application/image"
	"github.com/buxmate/buxmate/internal/application/invite"
	"github.com/buxmate/buxmate/internal/application/notification"
	"github.com/buxmate/buxmate/internal/application/ratelimit"
	"github.com/buxmate/buxmate/internal/application/session"
	"github.com/buxmate/buxmate/internal/application/user"
	"github.com/buxmate/buxmate/internal/config"
	"github.com/buxmate/buxmate/internal/domain"
	"github.com/buxmate/buxmate/internal/infrastructure/dynamo"
	jwtinfra "github.com/buxmate/buxmate/internal/infrastructure/jwt"
	s3infra "github.com/buxmate/buxmate/internal/infrastructure/s3"
	"github.com/buxmate/buxmate/internal/infrastructure/smtp"
	"github.com/buxmate/buxmate/internal/infrastructure/sns"
	"github.com/buxmate/buxmate/internal/transport/http/handler"
	appmiddleware "github.com/buxmate/buxmate/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         *dynamo.UserRepo
	SessionRepo      *dynamo.SessionRepo
	EventRepo        *dynamo.EventRepo
	ActivityRepo     *dynamo.ActivityRepo
	InvitationRepo   *dynamo.InvitationRepo
	VerificationRepo *dynamo.VerificationRepo
	RateLimitRepo    *dynamo.RateLimitRepo
	AuditRepo        *dynamo.AuditRepo
	NotificationRepo *dynamo.NotificationRepo
	ImageRepo        *dynamo.ImageRepo
	S3Store          *s3infra.Store
	Mailer           smtp.Mailer
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10 — applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	recorder := audit.NewRecorder(deps.AuditRepo, time.Duration(cfg.AuditRetentionDays)*24*time.Hour)
	limiter := ratelimit.NewLimiter(deps.RateLimitRepo)

	sessionSvc := session.NewService(deps.SessionRepo, deps.UserRepo, deps.JWTProvider)
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:           deps.UserRepo,
		SessionRepo:        deps.SessionRepo,
		DefaultPhoneRegion: cfg.DefaultPhoneRegion,
	})
	contactSvc := contactapp.NewService(contactapp.ServiceDeps{
		VerificationRepo:   deps.VerificationRepo,
		UserRepo:           deps.UserRepo,
		Limiter:            limiter,
		Auditor:            recorder,
		Mailer:             deps.Mailer,
		SMSSender:          deps.SMSSender,
		DefaultPhoneRegion: cfg.DefaultPhoneRegion,
	})
	inviteSvc := invite.NewService(invite.ServiceDeps{
		InvitationRepo:     deps.InvitationRepo,
		EventRepo:          deps.EventRepo,
		UserRepo:           deps.UserRepo,
		NotificationRepo:   deps.NotificationRepo,
		Auditor:            recorder,
		Mailer:             deps.Mailer,
		SMSSender:          deps.SMSSender,
		DefaultPhoneRegion: cfg.DefaultPhoneRegion,
	})
	eventSvc := eventapp.NewService(deps.EventRepo, deps.InvitationRepo, deps.ActivityRepo)
	activitySvc := activityapp.NewService(deps.ActivityRepo, deps.EventRepo, deps.InvitationRepo)
	imageSvc := imageapp.NewService(deps.S3Store, deps.ImageRepo, deps.EventRepo)
	notifSvc := notification.NewService(deps.NotificationRepo)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc, contactSvc)
	contactH := handler.NewContactHandler(contactSvc)
	eventH := handler.NewEventHandler(eventSvc)
	activityH := handler.NewActivityHandler(activitySvc)
	invitationH := handler.NewInvitationHandler(inviteSvc)
	imageH := handler.NewImageHandler(imageSvc)
	notifH := handler.NewNotificationHandler(notifSvc)
	auditH := handler.NewAuditHandler(recorder)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Put("/users/{id}", userH.Update)
			r.Post("/users/change-password", userH.ChangePassword)

			r.With(sensitiveRL.Limit).Post("/contact/email/{action}", contactH.EmailChangeAction)
			r.With(sensitiveRL.Limit).Post("/contact/phone/{action}", contactH.PhoneChangeAction)
			r.Post("/confirm-email/{action}", contactH.ConfirmEmailAction)
			r.Post("/confirm-phone/{action}", contactH.ConfirmPhoneAction)

			r.Post("/events", eventH.Create)
			r.Get("/events", eventH.ListMine)
			r.Get("/events/{id}", eventH.Get)
			r.Put("/events/{id}", eventH.Update)
			r.Delete("/events/{id}", eventH.Delete)

			r.Post("/events/{id}/activities", activityH.Create)
			r.Get("/events/{id}/activities", activityH.ListByEvent)
			r.Put("/events/{id}/activities/{activityID}", activityH.Update)
			r.Delete("/events/{id}/activities/{activityID}", activityH.Delete)

			r.Post("/events/{id}/guests", invitationH.AddGuests)
			r.Get("/events/{id}/guests", invitationH.ListGuests)
			r.Get("/invitations", invitationH.ListMine)
			r.Post("/invitations/{id}/respond", invitationH.Respond)

			r.Post("/events/{id}/cover", imageH.UploadCover)
			r.Get("/images/{imageID}/url", imageH.CoverURL)
			r.Delete("/images/{imageID}", imageH.Delete)

			r.Get("/notifications", notifH.ListUnread)
			r.Put("/notifications/{id}", notifH.MarkAsRead)

			r.Get("/audit", auditH.ListMine)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/users", userH.List)
				r.Delete("/users/{id}", userH.Delete)
				r.Get("/audit/users/{id}", auditH.ListByUser)
			})
		})
	})

	return r
}
