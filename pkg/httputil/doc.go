// Package httputil provides HTTP helpers shared by the API handlers.
//
// Every error response has the shape {"detail": "...", "fields": {...}} and
// its status is derived from the apierrors kind:
//
//	if err != nil {
//		httputil.WriteAPIError(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, account)
//
// ParseFields accepts JSON, urlencoded and multipart bodies for endpoints
// that take flat string fields such as login forms.
package httputil
