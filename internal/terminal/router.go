// internal/terminal/router.go
package terminal

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", h.Health)
	r.Get("/products", h.ListProducts)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{productID}", h.UpdateItem)
		r.Post("/items/{productID}/increment", h.IncrementItem)
		r.Delete("/items/{productID}", h.RemoveItem)
	})

	r.Post("/scan", h.Scan)
	r.Post("/keys", h.Keys)

	r.Route("/camera", func(r chi.Router) {
		r.Post("/open", h.OpenCamera)
		r.Post("/close", h.CloseCamera)
		r.Post("/decoded", h.CameraDecoded)
	})

	r.Post("/checkout", h.Checkout)

	r.Get("/notifications", h.Notifications)
	r.Delete("/notifications/{id}", h.DismissNotification)

	r.Post("/catalog/reload", h.ReloadCatalog)
	r.Get("/offline/pending", h.PendingSales)

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
