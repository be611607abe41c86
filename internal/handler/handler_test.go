package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/domain/product"
	"github.com/xenking/cart-session/internal/session"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID    map[string]*product.Product
	listErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]product.Product, 0, len(m.byID))
	for _, id := range []string{"p1", "p2"} {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) Upsert(_ context.Context, products []product.Product) error {
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return nil
}

type mockStoredRepo struct {
	rows map[string]*cart.StoredCart
	err  error
}

func (m *mockStoredRepo) key(identifier, instance string) string {
	return identifier + "/" + instance
}

func (m *mockStoredRepo) Delete(_ context.Context, identifier, instance string) error {
	delete(m.rows, m.key(identifier, instance))
	return m.err
}

func (m *mockStoredRepo) DeleteAll(_ context.Context, identifier string) error {
	for k, v := range m.rows {
		if v.Identifier == identifier {
			delete(m.rows, k)
		}
	}
	return m.err
}

func (m *mockStoredRepo) Insert(_ context.Context, sc *cart.StoredCart) error {
	m.rows[m.key(sc.Identifier, sc.Instance)] = sc
	return m.err
}

func (m *mockStoredRepo) FindFirst(_ context.Context, identifier, instance string) (*cart.StoredCart, error) {
	sc, ok := m.rows[m.key(identifier, instance)]
	if !ok {
		return nil, cart.ErrStoredCartNotFound
	}
	return sc, nil
}

// --- Helpers ---

type testServer struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	cookie   *http.Cookie
	products *mockProductRepo
	stored   *mockStoredRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	products := &mockProductRepo{byID: map[string]*product.Product{
		"p1": {ID: "p1", Name: "Waffle", Price: decimal.RequireFromString("6.50"), Category: "Waffle"},
		"p2": {ID: "p2", Name: "Brownie", Price: decimal.RequireFromString("5.50"), Category: "Brownie"},
	}}
	stored := &mockStoredRepo{rows: map[string]*cart.StoredCart{}}

	models := cart.NewModels()
	models.Register(product.ModelName, cart.ModelFinderFunc(func(ctx context.Context, id string) (any, error) {
		return products.GetByID(ctx, id)
	}))

	h := NewHandler(Config{Cart: cart.DefaultConfig()},
		session.NewStore(session.Config{Capacity: 100}),
		stored, products, nil, models,
	)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, client: srv.Client(), products: products, stored: stored}
}

func (s *testServer) do(method, path, body string) (int, string) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}

	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer func() { _ = resp.Body.Close() }()

	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			s.cookie = c
		}
	}
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, string(data)
}

func fields(t *testing.T, body string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, jx.DecodeStr(body).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		out[key] = raw.String()
		return nil
	}))
	return out
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

// --- Tests ---

func TestAddItems_MergesAndTotals(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/cart/default/items",
		`{"id":"sku1","name":"Shirt","qty":2,"price":"10.00","options":{"size":"M"}}`)
	require.Equal(t, http.StatusCreated, code, body)
	require.NotNil(t, s.cookie)

	code, body = s.do(http.MethodPost, "/api/cart/default/items",
		`{"id":"sku1","name":"Shirt","qty":3,"price":10,"options":{"size":"M"}}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "5", fields(t, body)["qty"])

	code, body = s.do(http.MethodGet, "/api/cart/default", "")
	require.Equal(t, http.StatusOK, code)
	f := fields(t, body)
	assert.Equal(t, "5", f["count"])
	assert.Equal(t, `"50.00"`, f["subtotal"])
	assert.Equal(t, `"8.00"`, f["tax"])
	assert.Equal(t, `"58.00"`, f["total"])
}

func TestGetCart_FormatOverrides(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/api/cart/default/items",
		`{"id":"tv","name":"TV","qty":1,"price":"1500","taxRate":"0"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(http.MethodGet, "/api/cart/default?places=1&point=,&separator=.", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, `"1.500,0"`, fields(t, body)["total"])

	code, _ = s.do(http.MethodGet, "/api/cart/default?places=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAddItems_Array(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/cart/default/items",
		`[{"id":"a","name":"A","qty":1,"price":"1"},{"id":"b","name":"","qty":1,"price":"1"}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, code, body)

	code, body = s.do(http.MethodGet, "/api/cart/default", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", fields(t, body)["count"], "invalid batch writes nothing")

	code, body = s.do(http.MethodPost, "/api/cart/default/items",
		`[{"id":"a","name":"A","qty":1,"price":"1"},{"id":"b","name":"B","qty":2,"price":"1"}]`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.True(t, strings.HasPrefix(body, "["))
}

func TestAddItems_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "empty body", body: "", wantCode: http.StatusBadRequest},
		{name: "malformed", body: `{"id":`, wantCode: http.StatusBadRequest},
		{name: "bad price", body: `{"id":"a","name":"A","qty":1,"price":"x"}`, wantCode: http.StatusBadRequest},
		{name: "zero qty", body: `{"id":"a","name":"A","qty":0,"price":"1"}`, wantCode: http.StatusUnprocessableEntity},
		{name: "negative price", body: `{"id":"a","name":"A","qty":1,"price":"-1"}`, wantCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			code, body := s.do(http.MethodPost, "/api/cart/default/items", tt.body)
			assert.Equal(t, tt.wantCode, code, body)

			f := fields(t, body)
			assert.NotEmpty(t, f["message"])
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newTestServer(t)
	code, _ := a.do(http.MethodPost, "/api/cart/default/items", `{"id":"a","name":"A","qty":1,"price":"1"}`)
	require.Equal(t, http.StatusCreated, code)

	// A second client on the same server without the cookie sees an empty cart.
	b := &testServer{t: t, srv: a.srv, client: a.srv.Client()}
	code, body := b.do(http.MethodGet, "/api/cart/default", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", fields(t, body)["count"])
	assert.NotEqual(t, a.cookie.Value, b.cookie.Value)

	code, body = a.do(http.MethodGet, "/api/cart/wishlist", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", fields(t, body)["count"], "instances are isolated")
	assert.Equal(t, `"wishlist"`, fields(t, body)["instance"])
}

func TestAddProduct(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodPost, "/api/cart/default/products/p1", "")
	require.Equal(t, http.StatusCreated, code, body)
	f := fields(t, body)
	assert.Equal(t, "1", f["qty"])
	assert.Equal(t, `"Waffle"`, f["name"])

	code, body = s.do(http.MethodPost, "/api/cart/default/products/p2", `{"qty":3,"options":{"topping":"nuts"}}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "3", fields(t, body)["qty"])

	code, _ = s.do(http.MethodPost, "/api/cart/default/products/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetItem_WithModel(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodPost, "/api/cart/default/products/p1", "")
	rowID := unquote(fields(t, body)["rowId"])

	code, body := s.do(http.MethodGet, "/api/cart/default/items/"+rowID, "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, fields(t, body)["model"], `"category":"Waffle"`)

	code, _ = s.do(http.MethodGet, "/api/cart/default/items/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateItem(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodPost, "/api/cart/default/items", `{"id":"a","name":"A","qty":1,"price":"1","options":{"size":"M"}}`)
	rowID := unquote(fields(t, body)["rowId"])

	code, body := s.do(http.MethodPatch, "/api/cart/default/items/"+rowID, `{"qty":4,"options":{"size":"L"}}`)
	require.Equal(t, http.StatusOK, code, body)
	f := fields(t, body)
	assert.Equal(t, "4", f["qty"])
	newRowID := unquote(f["rowId"])
	assert.NotEqual(t, rowID, newRowID)

	code, _ = s.do(http.MethodPatch, "/api/cart/default/items/"+newRowID, `{"name":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(http.MethodPatch, "/api/cart/default/items/"+newRowID, `{"qty":0}`)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(http.MethodPatch, "/api/cart/default/items/"+newRowID, `{"qty":1}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSyncItem(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodPost, "/api/cart/default/products/p1", "")
	rowID := unquote(fields(t, body)["rowId"])

	s.products.byID["p1"].Price = decimal.RequireFromString("7.25")

	code, body := s.do(http.MethodPost, "/api/cart/default/items/"+rowID+"/sync", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, `"7.25"`, fields(t, body)["price"])
}

func TestItemSettings(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodPost, "/api/cart/default/items", `{"id":"p2","name":"Brownie","qty":2,"price":"10"}`)
	rowID := unquote(fields(t, body)["rowId"])
	base := "/api/cart/default/items/" + rowID

	code, body := s.do(http.MethodPut, base+"/tax", `{"taxRate":"20"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, `"2"`, fields(t, body)["tax"])

	code, body = s.do(http.MethodPut, base+"/saved", `{"saved":true}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "true", fields(t, body)["isSaved"])

	code, _ = s.do(http.MethodPut, base+"/model", `{"model":"warehouse"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = s.do(http.MethodPut, base+"/model", `{"model":"product"}`)
	require.Equal(t, http.StatusOK, code)
	_, body = s.do(http.MethodGet, base, "")
	assert.Contains(t, fields(t, body)["model"], `"name":"Brownie"`)

	code, _ = s.do(http.MethodPut, base+"/tax", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRemoveAndDestroy(t *testing.T) {
	s := newTestServer(t)

	_, body := s.do(http.MethodPost, "/api/cart/default/items", `{"id":"a","name":"A","qty":1,"price":"1"}`)
	rowID := unquote(fields(t, body)["rowId"])
	_, _ = s.do(http.MethodPost, "/api/cart/default/items", `{"id":"b","name":"B","qty":1,"price":"1"}`)

	code, _ := s.do(http.MethodDelete, "/api/cart/default/items/"+rowID, "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodDelete, "/api/cart/default/items/"+rowID, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodDelete, "/api/cart/default", "")
	assert.Equal(t, http.StatusNoContent, code)
	_, body = s.do(http.MethodGet, "/api/cart/default", "")
	assert.Equal(t, "0", fields(t, body)["count"])
}

func TestStoreRestore(t *testing.T) {
	s := newTestServer(t)

	_, _ = s.do(http.MethodPost, "/api/cart/default/items", `{"id":"a","name":"A","qty":2,"price":"10"}`)

	code, _ := s.do(http.MethodPost, "/api/cart/default/store/user-1", "")
	require.Equal(t, http.StatusNoContent, code)
	require.Len(t, s.stored.rows, 1)

	_, _ = s.do(http.MethodDelete, "/api/cart/default", "")

	code, body := s.do(http.MethodPost, "/api/cart/default/restore/user-1", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "2", fields(t, body)["count"])

	code, _ = s.do(http.MethodDelete, "/api/stored/user-1", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Empty(t, s.stored.rows)
}

func TestStoredCartsAreScopedToSession(t *testing.T) {
	owner := newTestServer(t)
	_, _ = owner.do(http.MethodPost, "/api/cart/default/items", `{"id":"a","name":"Secret","qty":1,"price":"10"}`)
	code, _ := owner.do(http.MethodPost, "/api/cart/default/store/user-42", "")
	require.Equal(t, http.StatusNoContent, code)
	require.Len(t, owner.stored.rows, 1)
	for _, sc := range owner.stored.rows {
		assert.Equal(t, owner.cookie.Value+":user-42", sc.Identifier)
	}

	other := &testServer{t: t, srv: owner.srv, client: owner.srv.Client(), stored: owner.stored}
	code, body := other.do(http.MethodPost, "/api/cart/default/restore/user-42", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "0", fields(t, body)["count"])
	assert.NotContains(t, body, "Secret")

	code, _ = other.do(http.MethodDelete, "/api/stored/user-42", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.Len(t, owner.stored.rows, 1)

	code, body = owner.do(http.MethodPost, "/api/cart/wishlist/restore/user-42", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "0", fields(t, body)["count"], "snapshots are per instance")
}

func TestStore_RepositoryError(t *testing.T) {
	s := newTestServer(t)
	s.stored.err = errors.New("db down")

	code, body := s.do(http.MethodPost, "/api/cart/default/store/user-1", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, `"Internal Server Error"`, fields(t, body)["message"])
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"id":"p1"`)
	assert.Contains(t, body, `"price":"6.5"`)

	s.products.listErr = errors.New("db down")
	code, _ = s.do(http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad request", err: badRequest(errors.New("x"), "decode"), want: http.StatusBadRequest},
		{name: "row not found", err: &cart.RowNotFoundError{RowID: "r"}, want: http.StatusNotFound},
		{name: "product not found", err: errors.Wrap(product.ErrNotFound, "get"), want: http.StatusNotFound},
		{name: "invalid input", err: &cart.InvalidInputError{Field: "qty", Reason: "bad"}, want: http.StatusUnprocessableEntity},
		{name: "unknown model", err: &cart.UnknownModelError{Model: "m"}, want: http.StatusUnprocessableEntity},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
