// Package handler はポータルのHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// RouterDeps はルーター構築に必要な依存の束。
type RouterDeps struct {
	Auth        *AuthHandler
	Patient     *PatientHandler
	Doctor      *DoctorHandler
	Admin       *AdminHandler
	News        *NewsHandler
	Preferences *PreferenceHandler

	SessionResolver   middleware.SessionResolver
	RateLimiter       *middleware.RateLimiter
	CookieConfig      middleware.CookieConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	Logger            *slog.Logger
}

// NewRouter はポータルのルーターを構築する。
// ミドルウェアはCORS → セキュリティヘッダー → ロギング → リカバリー → CSRFの順に
// 全経路へ適用し、セッション解決とロール制限は認証が必要なグループにのみ適用する。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証前でも到達できる経路。ログインのみIP単位の厳しいレート制限を掛ける。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Post("/api/auth/login", deps.Auth.Login)
	})
	r.Get("/api/auth/verify", deps.Auth.Verify)
	r.Post("/api/auth/logout", deps.Auth.Logout)

	// 認証必須の経路。セッション解決後にユーザー単位のレート制限を掛ける。
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.CookieConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/preferences/page-size", deps.Preferences.GetPageSize)
		r.Put("/api/preferences/page-size", deps.Preferences.SetPageSize)

		r.Route("/api/patient", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RolePatient))

			r.Get("/appointments", deps.Patient.Appointments)
			r.Post("/appointments", deps.Patient.BookAppointment)
			r.Post("/appointments/{id}/cancel", deps.Patient.CancelAppointment)
			r.Get("/reports", deps.Patient.Reports)
			r.Get("/reports/{id}/download", deps.Patient.DownloadReport)
			r.Get("/payments", deps.Patient.Payments)
			r.Post("/payments/{id}/card", deps.Patient.PayCard)
			r.Post("/payments/{id}/mpesa", deps.Patient.PayMpesa)
			r.Post("/complaints", deps.Patient.FileComplaint)
			r.Get("/news", deps.Patient.News)
		})

		r.Route("/api/doctor", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RoleDoctor))

			r.Get("/dashboard", deps.Doctor.Dashboard)
			r.Get("/patients", deps.Doctor.Patients)
			r.Post("/reports", deps.Doctor.WriteReport)
			r.Get("/duties", deps.Doctor.Duties)
			r.Post("/messages", deps.Doctor.MessageAdmin)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewRequireRoleMiddleware(model.RoleAdmin))

			r.Get("/dashboard", deps.Admin.Dashboard)
			r.Get("/patients", deps.Admin.Patients)
			r.Post("/patients", deps.Admin.RegisterPatient)
			r.Get("/doctors", deps.Admin.Doctors)
			r.Post("/doctors", deps.Admin.RegisterDoctor)
			r.Post("/users/{id}/toggle-active", deps.Admin.ToggleActive)
			r.Get("/payments", deps.Admin.Payments)
			r.Get("/duties", deps.Admin.Duties)
			r.Post("/duties", deps.Admin.AssignDuty)
			r.Delete("/duties/{id}", deps.Admin.DeleteDuty)
			r.Get("/complaints", deps.Admin.Complaints)
			r.Post("/complaints/{id}/reply", deps.Admin.ReplyComplaint)
			r.Delete("/complaints/{id}", deps.Admin.DeleteComplaint)
			r.Post("/recommendations", deps.Admin.RecommendDoctor)

			r.Get("/news/sources", deps.News.ListSources)
			r.Post("/news/sources", deps.News.RegisterSource)
			r.Delete("/news/sources/{id}", deps.News.DeleteSource)
		})
	})

	return r
}
