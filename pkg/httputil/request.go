package httputil

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
)

const maxMultipartMemory = 1 << 20

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apierrors.Validation(fmt.Sprintf("JSON parse error - %v", err))
	}
	return nil
}

// ParseFields reads a flat set of string fields from a JSON object,
// urlencoded form or multipart form body. Non-string JSON values are
// rendered with their JSON encoding.
func ParseFields(r *http.Request) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, apierrors.Validation("invalid form body")
		}
		return flatten(r.PostForm), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, apierrors.Validation("invalid multipart body")
		}
		return flatten(r.MultipartForm.Value), nil
	default:
		var raw map[string]json.RawMessage
		if err := ParseJSON(r, &raw); err != nil {
			return nil, err
		}
		fields := make(map[string]string, len(raw))
		for key, value := range raw {
			var s string
			if err := json.Unmarshal(value, &s); err == nil {
				fields[key] = s
				continue
			}
			fields[key] = string(value)
		}
		return fields, nil
	}
}

func flatten(values map[string][]string) map[string]string {
	fields := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			fields[key] = v[0]
		}
	}
	return fields
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return 0, apierrors.NotFound("Not found.")
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, apierrors.NotFound("Not found.")
	}
	return val, nil
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", apierrors.NotFound("Not found.")
	}
	return str, nil
}
