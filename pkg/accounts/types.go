package accounts

import (
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

// Account is a tenant. AccountID and SecretToken are generated on create
// and never change.
type Account struct {
	ID          int64     `json:"id"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name"`
	SecretToken string    `json:"app_secret_token"`
	Website     *string   `json:"website"`
	CreatedBy   int64     `json:"created_by"`
	UpdatedBy   *int64    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member binds a user to an account with a role
type Member struct {
	ID        int64       `json:"id"`
	AccountID int64       `json:"account"`
	UserID    int64       `json:"user"`
	RoleID    rbac.RoleID `json:"role"`
	CreatedBy int64       `json:"created_by"`
	UpdatedBy *int64      `json:"updated_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AccountInput carries client supplied account fields. Nil fields are
// left unchanged on partial updates.
type AccountInput struct {
	AccountName *string `json:"account_name"`
	Website     *string `json:"website"`
}

// MemberInput carries client supplied membership fields
type MemberInput struct {
	AccountID *int64       `json:"account"`
	UserID    *int64       `json:"user"`
	RoleID    *rbac.RoleID `json:"role"`
}

// Field length limits
const (
	MaxAccountNameLength = 255
	MaxWebsiteLength     = 200
)

// AccountListOptions are the filters, search and orderings accepted by account listings
var AccountListOptions = storage.ListOptions{
	Fields: map[string]storage.Field{
		"account_id":   {Column: "account_id", Kind: storage.FilterText},
		"account_name": {Column: "account_name", Kind: storage.FilterText},
		"website":      {Column: "website", Kind: storage.FilterText},
		"created_by":   {Column: "created_by", Kind: storage.FilterInt},
		"updated_by":   {Column: "updated_by", Kind: storage.FilterInt},
	},
	SearchColumns: []string{"account_name"},
	Orderings: map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	DefaultOrder: "created_at ASC",
}

// MemberListOptions are the filters and orderings accepted by membership listings
var MemberListOptions = storage.ListOptions{
	Fields: map[string]storage.Field{
		"account":    {Column: "account_id", Kind: storage.FilterInt},
		"user":       {Column: "user_id", Kind: storage.FilterInt},
		"role":       {Column: "role_id", Kind: storage.FilterInt},
		"created_by": {Column: "created_by", Kind: storage.FilterInt},
		"updated_by": {Column: "updated_by", Kind: storage.FilterInt},
	},
	Orderings: map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	DefaultOrder: "created_at ASC",
}

// validate checks the input and returns per-field messages. partial skips
// required field checks.
func (in AccountInput) validate(partial bool) map[string]string {
	fields := make(map[string]string)

	if in.AccountName == nil {
		if !partial {
			fields["account_name"] = "This field is required."
		}
	} else {
		name := strings.TrimSpace(*in.AccountName)
		switch {
		case name == "":
			fields["account_name"] = "This field may not be blank."
		case len(name) > MaxAccountNameLength:
			fields["account_name"] = "Ensure this field has no more than 255 characters."
		}
	}

	if in.Website != nil && *in.Website != "" {
		if len(*in.Website) > MaxWebsiteLength {
			fields["website"] = "Ensure this field has no more than 200 characters."
		} else if !validWebURL(*in.Website) {
			fields["website"] = "Enter a valid URL."
		}
	}

	return fields
}

func (in MemberInput) validate(partial bool) map[string]string {
	fields := make(map[string]string)
	if !partial {
		if in.AccountID == nil {
			fields["account"] = "This field is required."
		}
		if in.UserID == nil {
			fields["user"] = "This field is required."
		}
		if in.RoleID == nil {
			fields["role"] = "This field is required."
		}
	}
	if in.RoleID != nil && !in.RoleID.Valid() {
		fields["role"] = "Invalid pk - object does not exist."
	}
	return fields
}

func validWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
