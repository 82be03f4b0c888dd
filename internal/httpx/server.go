package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/auth"
)

type Server struct {
	Products *ProductsHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Audit    *AuditHandler
	Events   *EventsHandler
	Log      *zap.Logger
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(requestLogger(s.Log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/stores/{storeID}", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Use(requireStoreMatch)

		// streaming; no request timeout
		r.Get("/events", s.Events.stream)

		r.Get("/products", s.Products.list)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.Cart.get)
			r.Post("/items", s.Cart.reserve)
			r.Delete("/items/{productID}", s.Cart.release)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.Orders.place)
			r.Get("/", s.Orders.list)
			r.Get("/{orderID}", s.Orders.get)
			r.Delete("/{orderID}", s.Orders.delete)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Post("/{orderID}/approve", s.Orders.approve)
				r.Post("/{orderID}/reject", s.Orders.reject)
				r.Post("/{orderID}/complete", s.Orders.complete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/products", s.Products.create)
			r.Post("/products/{productID}/restock", s.Products.restock)
			r.Post("/products/{productID}/adjust", s.Products.adjust)
			r.Post("/products/{productID}/archive", s.Products.archive)
			r.Put("/status", s.Products.setStoreStatus)
			r.Get("/audit", s.Audit.list)
		})
	})

	return r
}

// requireStoreMatch pins the URL's store to the caller's store. IDs never
// cross tenants even when they collide, because storeID is part of every
// key, but a mismatched request is rejected before touching the core.
func requireStoreMatch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context())
		if !ok || c.StoreID != chi.URLParam(r, "storeID") {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "store mismatch"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
