package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cart-session/internal/domain/cart"
	"github.com/xenking/cart-session/internal/domain/product"
)

// badRequestError marks a malformed request.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error, msg string) error {
	return &badRequestError{err: errors.Wrap(err, msg)}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var brErr *badRequestError
	switch {
	case errors.As(err, &brErr):
		return http.StatusBadRequest
	case errors.Is(err, cart.ErrRowNotFound), errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrInvalidInput), errors.Is(err, cart.ErrUnknownModel):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts err into a {"code","message"} response. Unmapped
// errors are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(code)
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(code)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
