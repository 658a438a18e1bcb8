package ldhttpbackend

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/snapshelf/syncstore/internal/wire"
	"github.com/snapshelf/syncstore/subsystems"
)

const maxRequestBodySize = 1 << 20

// NamespaceResolver returns the backend that holds the named namespace, or false if there is none.
type NamespaceResolver func(namespace string) (subsystems.Backend, bool)

type statusError interface {
	HTTPStatus() int
}

type badRequestError struct {
	message string
}

func (e badRequestError) Error() string   { return e.message }
func (e badRequestError) HTTPStatus() int { return http.StatusBadRequest }

type notFoundError struct{}

func (e notFoundError) Error() string   { return "not found" }
func (e notFoundError) HTTPStatus() int { return http.StatusNotFound }

type namespaceHandler struct {
	resolve NamespaceResolver
	loggers ldlog.Loggers
}

// NewNamespaceHandler returns an HTTP handler that serves namespaces from the backends returned by
// resolve, using the protocol described in the package documentation.
func NewNamespaceHandler(resolve NamespaceResolver, loggers ldlog.Loggers) http.Handler {
	h := &namespaceHandler{resolve: resolve, loggers: loggers}
	router := mux.NewRouter()
	router.HandleFunc(namespacesPath+"{namespace}", h.getValues).Methods(http.MethodGet)
	router.HandleFunc(namespacesPath+"{namespace}", h.patchValues).Methods(http.MethodPatch)
	return router
}

func (h *namespaceHandler) getValues(w http.ResponseWriter, r *http.Request) {
	backend, err := h.getBackend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var names []string
	for _, name := range strings.Split(r.URL.Query().Get("keys"), ",") {
		if name != "" {
			names = append(names, name)
		}
	}
	values, err := backend.BulkRead(r.Context(), names)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := wire.EncodeValues(values)
	sum := sha256.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *namespaceHandler) patchValues(w http.ResponseWriter, r *http.Request) {
	backend, err := h.getBackend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		h.writeError(w, badRequestError{err.Error()})
		return
	}
	values, err := wire.DecodeValues(body)
	if err != nil {
		h.writeError(w, badRequestError{err.Error()})
		return
	}
	if err := backend.Write(r.Context(), values); err != nil {
		h.writeError(w, err)
		return
	}
	h.loggers.Debugf("Wrote %d value(s) to namespace %s", len(values), mux.Vars(r)["namespace"])
	w.WriteHeader(http.StatusNoContent)
}

func (h *namespaceHandler) getBackend(r *http.Request) (subsystems.Backend, error) {
	backend, ok := h.resolve(mux.Vars(r)["namespace"])
	if !ok {
		return nil, notFoundError{}
	}
	return backend, nil
}

func (h *namespaceHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var se statusError
	if errors.As(err, &se) {
		status = se.HTTPStatus()
	} else {
		h.loggers.Errorf("Request failed: %s", err)
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
