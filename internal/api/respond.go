package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"ximoveis/internal/middleware"
	"ximoveis/internal/search"
	"ximoveis/internal/service"
	"ximoveis/internal/storage"
	"ximoveis/internal/util"
)

const maxJSONBytes = 1 << 20

// writeErr maps service errors onto statuses. Anything unrecognised is a 500
// with a generic message; the cause is only logged.
func (h *Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig), errors.Is(err, storage.ErrTooLarge):
		util.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the size limit", rid)
	case errors.Is(err, service.ErrValidation):
		util.WriteError(w, http.StatusBadRequest, "validation_failed", detail(err, service.ErrValidation), rid)
	case errors.Is(err, search.ErrInvalidCriteria):
		util.WriteError(w, http.StatusBadRequest, "invalid_criteria", detail(err, search.ErrInvalidCriteria), rid)
	case errors.Is(err, storage.ErrUnsupportedType):
		util.WriteError(w, http.StatusBadRequest, "unsupported_file", detail(err, storage.ErrUnsupportedType), rid)
	case errors.Is(err, service.ErrUnauthenticated):
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", detail(err, service.ErrUnauthenticated), rid)
	case errors.Is(err, service.ErrForbidden):
		util.WriteError(w, http.StatusForbidden, "forbidden", detail(err, service.ErrForbidden), rid)
	case errors.Is(err, service.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "not_found", detail(err, service.ErrNotFound), rid)
	case errors.Is(err, service.ErrConflict):
		util.WriteError(w, http.StatusConflict, "conflict", detail(err, service.ErrConflict), rid)
	default:
		h.log.WithFields(logrus.Fields{
			"request_id": rid,
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      err.Error(),
		}).Error("request failed")
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", rid)
	}
}

// detail strips the sentinel prefix so clients see only the specific reason.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", service.ErrValidation)
	}
	return id, nil
}

// decodeJSON reads a bounded JSON body. With optional set an empty body
// leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: invalid json", service.ErrValidation)
	}
	return nil
}
