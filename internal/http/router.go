package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/items/{item_id}", h.GetItem)
		r.Get("/items", h.SearchItems)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/items", h.AddItem)
				r.Delete("/items/{item_id}", h.RemoveItem)
			})

			r.Post("/checkout", h.InitiateCheckout)
			r.Post("/payment", h.ProcessPayment)
			r.Post("/payment/verify", h.VerifyPayment)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.OrderHistory)
				r.Post("/{order_id}/cancel", h.CancelOrder)
			})
		})
	})

	return r
}
