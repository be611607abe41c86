package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/domain/product"
)

const maxBodySize = 1 << 20

type lineRequest struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Qty     int               `json:"qty"`
	Price   decimal.Decimal   `json:"price"`
	Options map[string]string `json:"options"`
	TaxRate *decimal.Decimal  `json:"taxRate"`
}

func (l lineRequest) line() cart.Line {
	return cart.Line{
		ID:      l.ID,
		Name:    l.Name,
		Qty:     l.Qty,
		Price:   l.Price,
		Options: l.Options,
		TaxRate: l.TaxRate,
	}
}

type productLineRequest struct {
	Qty     int               `json:"qty"`
	Options map[string]string `json:"options"`
}

type patchRequest struct {
	ID      *string           `json:"id"`
	Name    *string           `json:"name"`
	Qty     *int              `json:"qty"`
	Price   *decimal.Decimal  `json:"price"`
	Options map[string]string `json:"options"`
}

type taxRequest struct {
	TaxRate decimal.Decimal `json:"taxRate"`
}

type savedRequest struct {
	Saved bool `json:"saved"`
}

type modelRequest struct {
	Model string `json:"model"`
}

// GetCart returns the content and totals of an instance.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	opts, err := formatOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, h.cartFor(r), opts)
}

// DestroyCart clears an instance.
func (h *Handler) DestroyCart(w http.ResponseWriter, r *http.Request) {
	h.cartFor(r).Destroy()
	w.WriteHeader(http.StatusNoContent)
}

// AddItems adds one line (JSON object) or several lines (JSON array).
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c := h.cartFor(r)

	if bytes.HasPrefix(body, []byte("[")) {
		var reqs []lineRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			writeError(w, r, badRequest(err, "decode lines"))
			return
		}
		lines := make([]cart.Line, len(reqs))
		for i, l := range reqs {
			lines[i] = l.line()
		}
		items, err := c.AddMany(r.Context(), lines)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
			e.ArrStart()
			for _, item := range items {
				item.Encode(e)
			}
			e.ArrEnd()
		})
		return
	}

	var req lineRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, r, badRequest(err, "decode line"))
		return
	}
	item, err := c.AddOne(r.Context(), req.line())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeItem(w, http.StatusCreated, item)
}

// AddProduct adds a catalog product. The optional body sets qty and options.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req productLineRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.cartFor(r).AddOne(r.Context(), cart.Line{
		Qty:     req.Qty,
		Options: req.Options,
		Buyable: p,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeItem(w, http.StatusCreated, item)
}

// GetItem returns a row together with its associated model, if any.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(r)
	item, err := c.Get(chi.URLParam(r, "rowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	model, err := c.ResolveModel(r.Context(), item)
	if err != nil && !errors.Is(err, product.ErrNotFound) {
		writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	if err := item.EncodeWithModel(e, model); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}

// UpdateItem applies a partial update. A resulting qty of zero or less
// removes the row and responds 204.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.cartFor(r).UpdatePatch(r.Context(), chi.URLParam(r, "rowID"), cart.Patch{
		ID:      req.ID,
		Name:    req.Name,
		Qty:     req.Qty,
		Price:   req.Price,
		Options: req.Options,
	})
	writeUpdated(w, r, item, err)
}

// SyncItem refreshes a row from the current catalog product.
func (h *Handler) SyncItem(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(r)
	rowID := chi.URLParam(r, "rowID")
	item, err := c.Get(rowID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), item.ID())
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := c.UpdateFromBuyable(r.Context(), rowID, p)
	writeUpdated(w, r, updated, err)
}

// RemoveItem deletes a row.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cartFor(r).Remove(r.Context(), chi.URLParam(r, "rowID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTax sets the tax rate of a row.
func (h *Handler) SetTax(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.modifyItem(w, r, func(c *cart.Cart, rowID string) error {
		return c.SetTax(rowID, req.TaxRate)
	})
}

// SetSaved flags a row as saved for later.
func (h *Handler) SetSaved(w http.ResponseWriter, r *http.Request) {
	var req savedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.modifyItem(w, r, func(c *cart.Cart, rowID string) error {
		return c.SetSaved(rowID, req.Saved)
	})
}

// Associate links a row to a registered model.
func (h *Handler) Associate(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.modifyItem(w, r, func(c *cart.Cart, rowID string) error {
		return c.Associate(rowID, req.Model)
	})
}

func (h *Handler) modifyItem(w http.ResponseWriter, r *http.Request, fn func(c *cart.Cart, rowID string) error) {
	c := h.cartFor(r)
	rowID := chi.URLParam(r, "rowID")
	if err := fn(c, rowID); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := c.Get(rowID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeItem(w, http.StatusOK, item)
}

// StoreCart snapshots an instance under {identifier}.
func (h *Handler) StoreCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cartFor(r).Store(r.Context(), storedIdentifier(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreCart merges the snapshot stored under {identifier} and returns the
// resulting cart.
func (h *Handler) RestoreCart(w http.ResponseWriter, r *http.Request) {
	c := h.cartFor(r)
	if err := c.Restore(r.Context(), storedIdentifier(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, http.StatusOK, c, nil)
}

// DeleteStored drops every snapshot the session stored under {identifier}.
func (h *Handler) DeleteStored(w http.ResponseWriter, r *http.Request) {
	c := cart.New(h.cfg.Cart, nil, h.stored, h.events, h.models)
	if err := c.DeleteStored(r.Context(), storedIdentifier(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// storedIdentifier scopes {identifier} to the caller's session. Snapshots
// are only reachable from the session that stored them.
func storedIdentifier(r *http.Request) string {
	id := chi.URLParam(r, "identifier")
	if strings.TrimSpace(id) == "" {
		return ""
	}
	return sessionFrom(r.Context()).ID() + ":" + id
}

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			e.ObjStart()
			e.FieldStart("id")
			e.Str(p.ID)
			e.FieldStart("name")
			e.Str(p.Name)
			e.FieldStart("price")
			e.Str(p.Price.String())
			e.FieldStart("category")
			e.Str(p.Category)
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func writeUpdated(w http.ResponseWriter, r *http.Request, item *cart.Item, err error) {
	switch {
	case err != nil:
		writeError(w, r, err)
	case item == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeItem(w, http.StatusOK, item)
	}
}

func writeItem(w http.ResponseWriter, code int, item *cart.Item) {
	writeJSON(w, code, item.Encode)
}

func writeCart(w http.ResponseWriter, code int, c *cart.Cart, opts []cart.FormatOption) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("instance")
		e.Str(c.CurrentInstance())
		e.FieldStart("count")
		e.Int(c.Count())
		e.FieldStart("items")
		e.ArrStart()
		for _, item := range c.Content().Items() {
			item.Encode(e)
		}
		e.ArrEnd()
		e.FieldStart("subtotal")
		e.Str(c.Subtotal(opts...))
		e.FieldStart("tax")
		e.Str(c.Tax(opts...))
		e.FieldStart("total")
		e.Str(c.Total(opts...))
		e.ObjEnd()
	})
}

// formatOptions reads the places, point and separator query parameters.
func formatOptions(r *http.Request) ([]cart.FormatOption, error) {
	q := r.URL.Query()
	var opts []cart.FormatOption
	if q.Has("places") {
		places, err := strconv.ParseInt(q.Get("places"), 10, 32)
		if err != nil || places < 0 {
			return nil, badRequest(errors.New("must be a non-negative integer"), "places")
		}
		opts = append(opts, cart.Places(int32(places)))
	}
	if q.Has("point") {
		opts = append(opts, cart.Point(q.Get("point")))
	}
	if q.Has("separator") {
		opts = append(opts, cart.Separator(q.Get("separator")))
	}
	return opts, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, badRequest(err, "read body")
	}
	if len(body) > maxBodySize {
		return nil, badRequest(errors.New("too large"), "read body")
	}
	return bytes.TrimSpace(body), nil
}

func decodeBody(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest(err, "decode body")
	}
	return nil
}

func decodeOptional(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil || len(body) == 0 {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest(err, "decode body")
	}
	return nil
}
