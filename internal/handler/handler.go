// Package handler exposes the cart over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/domain/product"
	"github.com/xenking/cart-session/internal/session"
)

// DefaultCookieName is the session cookie used when Config leaves it empty.
const DefaultCookieName = "cart_session"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	Cart cart.Config
	// CookieName names the session cookie.
	CookieName string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// CookieTTL is the cookie Max-Age. Zero issues a browser-session cookie.
	CookieTTL time.Duration
}

// Handler serves the cart API. Each request gets its own cart.Cart bound to
// the caller's session.
type Handler struct {
	cfg      Config
	sessions *session.Store
	stored   cart.Repository
	products product.Repository
	events   cart.Notifier
	models   *cart.Models
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	cfg Config,
	sessions *session.Store,
	stored cart.Repository,
	products product.Repository,
	events cart.Notifier,
	models *cart.Models,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Handler{
		cfg:      cfg,
		sessions: sessions,
		stored:   stored,
		products: products,
		events:   events,
		models:   models,
	}
}

// Router returns the API routes mounted under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.With(h.withSession).Delete("/stored/{identifier}", h.DeleteStored)

		r.Route("/cart/{instance}", func(r chi.Router) {
			r.Use(h.withSession)

			r.Get("/", h.GetCart)
			r.Delete("/", h.DestroyCart)
			r.Post("/items", h.AddItems)
			r.Post("/products/{productID}", h.AddProduct)
			r.Post("/store/{identifier}", h.StoreCart)
			r.Post("/restore/{identifier}", h.RestoreCart)

			r.Route("/items/{rowID}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Patch("/", h.UpdateItem)
				r.Delete("/", h.RemoveItem)
				r.Post("/sync", h.SyncItem)
				r.Put("/tax", h.SetTax)
				r.Put("/saved", h.SetSaved)
				r.Put("/model", h.Associate)
			})
		})
	})

	return r
}

// cartFor returns a cart bound to the request session and the {instance}
// URL parameter.
func (h *Handler) cartFor(r *http.Request) *cart.Cart {
	sess := sessionFrom(r.Context())
	c := cart.New(h.cfg.Cart, sess, h.stored, h.events, h.models)
	return c.SetInstance(chi.URLParam(r, "instance"))
}
