package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/hookrelay/pkg/destinations"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// destinationHandlers serves the destination registry
type destinationHandlers struct {
	svc *destinations.Service
}

// RegisterRoutes registers destination routes
func (h *destinationHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/destinations", h.list).Methods(http.MethodGet)
	r.HandleFunc("/destinations", h.create).Methods(http.MethodPost)
	r.HandleFunc("/destinations/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/destinations/{id}", h.update).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/destinations/{id}", h.delete).Methods(http.MethodDelete)
}

func (h *destinationHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), rbac.GetPrincipal(r.Context()), r.URL.Query())
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *destinationHandlers) create(w http.ResponseWriter, r *http.Request) {
	var in destinations.Input
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	dest, err := h.svc.Create(r.Context(), rbac.GetPrincipal(r.Context()), in)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, dest)
}

func (h *destinationHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	dest, err := h.svc.Get(r.Context(), rbac.GetPrincipal(r.Context()), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, dest)
}

func (h *destinationHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var in destinations.Input
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	dest, err := h.svc.Update(r.Context(), rbac.GetPrincipal(r.Context()), id, in, r.Method == http.MethodPatch)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, dest)
}

func (h *destinationHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), rbac.GetPrincipal(r.Context()), id); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// logHandlers serves the read-only delivery log
type logHandlers struct {
	svc *webhooks.LogService
}

// RegisterRoutes registers delivery log routes. Writes are rejected with 405.
func (h *logHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/logs", h.list).Methods(http.MethodGet)
	r.HandleFunc("/logs/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/logs", httputil.WriteMethodNotAllowed).Methods(http.MethodPost)
	r.HandleFunc("/logs/{id}", httputil.WriteMethodNotAllowed).Methods(http.MethodPut, http.MethodPatch, http.MethodDelete)
}

func (h *logHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), rbac.GetPrincipal(r.Context()), r.URL.Query())
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *logHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	entry, err := h.svc.Get(r.Context(), rbac.GetPrincipal(r.Context()), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, entry)
}
