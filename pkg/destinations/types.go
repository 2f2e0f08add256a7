package destinations

import (
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// Supported delivery methods
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// MaxURLLength bounds destination URLs
const MaxURLLength = 500

// Destination is an outbound HTTP target of one account
type Destination struct {
	ID         int64             `json:"id"`
	AccountID  int64             `json:"account"`
	URL        string            `json:"url"`
	HTTPMethod string            `json:"http_method"`
	Headers    map[string]string `json:"headers"`
	CreatedBy  int64             `json:"created_by"`
	UpdatedBy  int64             `json:"updated_by"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Input carries client supplied destination fields. Nil fields are left
// unchanged on partial updates.
type Input struct {
	AccountID  *int64            `json:"account"`
	URL        *string           `json:"url"`
	HTTPMethod *string           `json:"http_method"`
	Headers    map[string]string `json:"headers"`
}

// ListOptions are the filters, search and orderings accepted by destination listings
var ListOptions = storage.ListOptions{
	Fields: map[string]storage.Field{
		"account":     {Column: "account_id", Kind: storage.FilterInt},
		"http_method": {Column: "http_method", Kind: storage.FilterText},
		"created_by":  {Column: "created_by", Kind: storage.FilterInt},
	},
	SearchColumns: []string{"url"},
	Orderings: map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	DefaultOrder: "created_at DESC",
}

// ValidMethod reports whether method is a supported delivery method
func ValidMethod(method string) bool {
	switch method {
	case MethodGet, MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

func (in *Input) normalize() {
	if in.HTTPMethod != nil {
		m := strings.ToUpper(strings.TrimSpace(*in.HTTPMethod))
		in.HTTPMethod = &m
	}
	if in.URL != nil {
		u := strings.TrimSpace(*in.URL)
		in.URL = &u
	}
}

func (in Input) validate(partial bool) map[string]string {
	fields := make(map[string]string)

	if in.AccountID == nil && !partial {
		fields["account"] = "This field is required."
	}

	if in.URL == nil {
		if !partial {
			fields["url"] = "This field is required."
		}
	} else {
		switch {
		case *in.URL == "":
			fields["url"] = "This field may not be blank."
		case len(*in.URL) > MaxURLLength:
			fields["url"] = "Ensure this field has no more than 500 characters."
		case !validDestinationURL(*in.URL):
			fields["url"] = "Enter a valid URL."
		}
	}

	if in.HTTPMethod != nil && !ValidMethod(*in.HTTPMethod) {
		fields["http_method"] = `"` + *in.HTTPMethod + `" is not a valid choice.`
	}

	for name := range in.Headers {
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " :\r\n") {
			fields["headers"] = "Header names must be non-empty tokens."
			break
		}
	}

	return fields
}

func validDestinationURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
