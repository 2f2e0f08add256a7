package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/hookrelay/pkg/auth"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
	"github.com/platinummonkey/hookrelay/pkg/middleware"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/users"
)

// userHandlers serves users and the token endpoints
type userHandlers struct {
	svc   *users.Service
	audit *auth.AuditLogger
}

// RegisterRoutes registers user and token routes
func (h *userHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users", h.list).Methods(http.MethodGet)
	r.HandleFunc("/users", h.create).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.update).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/users/{id}", h.delete).Methods(http.MethodDelete)

	r.HandleFunc("/obtain-token", h.obtainToken).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
}

func (h *userHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), rbac.GetPrincipal(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *userHandlers) create(w http.ResponseWriter, r *http.Request) {
	var in users.Input
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	p := rbac.GetPrincipal(r.Context())
	user, err := h.svc.Create(r.Context(), p, in)
	if err != nil {
		h.audit.LogFromRequest(r, auth.AuditEvent{Action: auth.ActionUserCreate, ResourceType: "user", UserID: p.UserID, Status: auth.StatusFailure, Err: err})
		httputil.WriteAPIError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionUserCreate,
		ResourceType: "user",
		ResourceID:   strconv.FormatInt(user.ID, 10),
		UserID:       p.UserID,
		Status:       auth.StatusSuccess,
	})
	httputil.WriteCreated(w, user)
}

func (h *userHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	user, err := h.svc.Get(r.Context(), rbac.GetPrincipal(r.Context()), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (h *userHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var in users.Input
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	p := rbac.GetPrincipal(r.Context())
	user, err := h.svc.Update(r.Context(), p, id, in, r.Method == http.MethodPatch)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionUserUpdate,
		ResourceType: "user",
		ResourceID:   strconv.FormatInt(id, 10),
		UserID:       p.UserID,
		Status:       auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, user)
}

func (h *userHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	p := rbac.GetPrincipal(r.Context())
	event := auth.AuditEvent{
		Action:       auth.ActionUserDelete,
		ResourceType: "user",
		ResourceID:   strconv.FormatInt(id, 10),
		UserID:       p.UserID,
		Status:       auth.StatusSuccess,
	}
	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		event.Status, event.Err = auth.StatusFailure, err
		h.audit.LogFromRequest(r, event)
		httputil.WriteAPIError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, event)
	httputil.WriteNoContent(w)
}

// tokenResponse is the body of a successful login
type tokenResponse struct {
	Token string `json:"token"`
}

func (h *userHandlers) obtainToken(w http.ResponseWriter, r *http.Request) {
	fields, err := httputil.ParseFields(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	token, user, err := h.svc.Login(r.Context(), fields["email"], fields["password"])
	if err != nil {
		h.audit.LogFromRequest(r, auth.AuditEvent{Action: auth.ActionAuthFailure, ResourceType: "token", Status: auth.StatusFailure, Err: err})
		httputil.WriteAPIError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionTokenCreate,
		ResourceType: "token",
		UserID:       user.ID,
		Status:       auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, tokenResponse{Token: token})
}

// messageResponse is a plain acknowledgement
type messageResponse struct {
	Message string `json:"message"`
}

func (h *userHandlers) logout(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if err := h.svc.Logout(r.Context(), authCtx); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	h.audit.LogFromRequest(r, auth.AuditEvent{
		Action:       auth.ActionTokenRevoke,
		ResourceType: "token",
		UserID:       authCtx.UserID(),
		Status:       auth.StatusSuccess,
	})
	httputil.WriteSuccess(w, messageResponse{Message: "Successfully logged out"})
}
