package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/httputil"
	"github.com/platinummonkey/hookrelay/pkg/webhooks"
)

// ingestHandlers serves the inbound event endpoint. It authenticates with
// the account secret header, not with user tokens.
type ingestHandlers struct {
	gateway *webhooks.Gateway
}

// RegisterRoutes registers the ingestion route
func (h *ingestHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/server/incoming_data", h.incomingData).Methods(http.MethodPost)
}

func (h *ingestHandlers) incomingData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		httputil.WriteAPIError(w, r, apierrors.Validation("Unable to read request body."))
		return
	}

	receipt, err := h.gateway.Submit(r.Context(), r.Header, body)
	if errors.Is(err, webhooks.ErrDuplicateEvent) {
		httputil.WriteJSON(w, http.StatusBadRequest, webhooks.Receipt{Success: false, Message: "Duplicate Event ID"})
		return
	}
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, receipt)
}
