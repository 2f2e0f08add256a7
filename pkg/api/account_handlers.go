package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/hookrelay/pkg/accounts"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
)

// accountHandlers serves accounts, memberships and roles
type accountHandlers struct {
	svc *accounts.Service
}

// RegisterRoutes registers account, membership and role routes
func (h *accountHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/accounts", h.listAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts", h.createAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{account_id}", h.getAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{account_id}", h.updateAccount).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/accounts/{account_id}", h.deleteAccount).Methods(http.MethodDelete)

	r.HandleFunc("/account_members", h.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/account_members", h.createMember).Methods(http.MethodPost)
	r.HandleFunc("/account_members/{id}", h.getMember).Methods(http.MethodGet)
	r.HandleFunc("/account_members/{id}", h.updateMember).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/account_members/{id}", h.deleteMember).Methods(http.MethodDelete)

	r.HandleFunc("/roles", h.listRoles).Methods(http.MethodGet)
	r.HandleFunc("/roles/{id}", h.getRole).Methods(http.MethodGet)
}

func (h *accountHandlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAccounts(r.Context(), rbac.GetPrincipal(r.Context()), r.URL.Query())
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *accountHandlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var in accounts.AccountInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), rbac.GetPrincipal(r.Context()), in)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, account)
}

func (h *accountHandlers) getAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := httputil.ParsePathString(r, "account_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	account, err := h.svc.GetAccount(r.Context(), rbac.GetPrincipal(r.Context()), accountID)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

func (h *accountHandlers) updateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := httputil.ParsePathString(r, "account_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var in accounts.AccountInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	account, err := h.svc.UpdateAccount(r.Context(), rbac.GetPrincipal(r.Context()), accountID, in, r.Method == http.MethodPatch)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, account)
}

func (h *accountHandlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := httputil.ParsePathString(r, "account_id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), rbac.GetPrincipal(r.Context()), accountID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *accountHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListMembers(r.Context(), rbac.GetPrincipal(r.Context()), r.URL.Query())
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *accountHandlers) createMember(w http.ResponseWriter, r *http.Request) {
	var in accounts.MemberInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	member, err := h.svc.CreateMember(r.Context(), rbac.GetPrincipal(r.Context()), in)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteCreated(w, member)
}

func (h *accountHandlers) getMember(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	member, err := h.svc.GetMember(r.Context(), rbac.GetPrincipal(r.Context()), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

func (h *accountHandlers) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	var in accounts.MemberInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	member, err := h.svc.UpdateMember(r.Context(), rbac.GetPrincipal(r.Context()), id, in, r.Method == http.MethodPatch)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

func (h *accountHandlers) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.svc.DeleteMember(r.Context(), rbac.GetPrincipal(r.Context()), id); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *accountHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context(), rbac.GetPrincipal(r.Context()))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

func (h *accountHandlers) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	role, err := h.svc.GetRole(r.Context(), rbac.GetPrincipal(r.Context()), id)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}
