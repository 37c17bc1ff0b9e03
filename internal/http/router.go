package httpapi

import (
	"context"
	"net/http"
	"time"

	"aicavalli-order-service/internal/config"
	"aicavalli-order-service/internal/http/handlers"
	"aicavalli-order-service/internal/middleware"
	"aicavalli-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/guest/check-in", h.GuestCheckIn)
			r.Post("/login", h.Login)
		})

		r.Route("/public", func(r chi.Router) {
			r.Get("/menu", h.PublicMenu)
			r.Get("/specials", h.PublicSpecials)
			r.Get("/announcements", h.PublicAnnouncements)
		})

		r.Route("/orders", func(r chi.Router) {
			// Guests without a bearer token prove their session in the body.
			r.With(middleware.OptionalAuth(cfg.JWTSecret)).Post("/", h.OrderCreate)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(cfg.JWTSecret))
				r.Get("/mine", h.OrdersMine)
				r.Get("/{orderId}", h.OrderDetail)
				r.Patch("/{orderId}/items", h.OrderCustomerEdit)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Get("/active", h.SessionActive)
			r.Get("/{sessionId}", h.SessionDetail)
			r.Post("/{sessionId}/request-bill", h.SessionRequestBill)
		})

		r.Route("/kitchen", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(middleware.RequireCapability())
			r.Get("/orders/active", h.KitchenBoard)
			r.Put("/orders/{orderId}/status", h.KitchenUpdateStatus)
			r.Patch("/orders/{orderId}/items", h.KitchenEditItems)
			r.Put("/orders/{orderId}/discount", h.KitchenDiscount)
			r.Get("/sessions", h.KitchenSessions)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(middleware.RequireCapability())
			r.Get("/", h.BillList)
			r.Post("/", h.BillGenerate)
			r.Get("/{billId}", h.BillDetail)
			r.Post("/{billId}/print", h.BillPrint)
			r.Get("/{billId}/receipt.pdf", h.BillReceiptPDF)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authenticate(cfg.JWTSecret))
			r.Use(middleware.RequireCapability())
			r.Post("/users", h.AdminCreateUser)
			r.Post("/menu", h.AdminMenuCreate)
			r.Put("/menu/{id}", h.AdminMenuUpdate)
			r.Patch("/menu/{id}/availability", h.AdminMenuAvailability)
			r.Post("/menu/{id}/image", h.AdminMenuImage)
			r.Post("/categories", h.AdminCategoryCreate)
			r.Post("/specials", h.AdminSpecialCreate)
			r.Post("/announcements", h.AdminAnnouncementCreate)
			r.Get("/analytics/dashboard", h.AdminDashboard)
		})
	})

	if wsServer != nil {
		r.Get("/ws/kitchen/orders", wsServer.KitchenOrdersWS)
		r.Get("/ws/orders/{orderId}", wsServer.OrderWS)
		r.Get("/ws/sessions/{sessionId}", wsServer.SessionWS)
	}

	return r
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
