package rbac

// Kind classifies a principal for policy evaluation
type Kind int

const (
	KindAnonymous Kind = iota
	KindSuperuser
	KindAccountAdmin
	KindMember
)

func (k Kind) String() string {
	switch k {
	case KindAnonymous:
		return "anonymous"
	case KindSuperuser:
		return "superuser"
	case KindAccountAdmin:
		return "account_admin"
	case KindMember:
		return "member"
	default:
		return "unknown"
	}
}

// Principal is the acting user together with its account memberships.
// A nil Principal or one with a zero UserID is anonymous.
type Principal struct {
	UserID      int64
	IsSuperuser bool
	Memberships []Membership
}

// Anonymous returns the unauthenticated principal
func Anonymous() *Principal {
	return &Principal{}
}

// Kind returns the principal's classification
func (p *Principal) Kind() Kind {
	switch {
	case p == nil || p.UserID == 0:
		return KindAnonymous
	case p.IsSuperuser:
		return KindSuperuser
	case p.IsAdminAnywhere():
		return KindAccountAdmin
	default:
		return KindMember
	}
}

// IsAuthenticated reports whether the principal is a logged in user
func (p *Principal) IsAuthenticated() bool {
	return p.Kind() != KindAnonymous
}

// IsAdminAnywhere reports whether the principal holds the Admin role in any account
func (p *Principal) IsAdminAnywhere() bool {
	if p == nil {
		return false
	}
	for _, m := range p.Memberships {
		if m.RoleID == RoleAdmin {
			return true
		}
	}
	return false
}

// MemberOf reports whether the principal holds any role in accountID
func (p *Principal) MemberOf(accountID int64) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Memberships {
		if m.AccountID == accountID {
			return true
		}
	}
	return false
}

// HasRoleIn reports whether the principal holds role in accountID
func (p *Principal) HasRoleIn(accountID int64, role RoleID) bool {
	if p == nil {
		return false
	}
	for _, m := range p.Memberships {
		if m.AccountID == accountID && m.RoleID == role {
			return true
		}
	}
	return false
}

// IsAccountAdmin reports whether the principal administers accountID.
// Superusers are implicitly admin of every account.
func (p *Principal) IsAccountAdmin(accountID int64) bool {
	return p.Kind() == KindSuperuser || p.HasRoleIn(accountID, RoleAdmin)
}

// AccountIDs returns the distinct accounts the principal belongs to
func (p *Principal) AccountIDs() []int64 {
	if p == nil {
		return nil
	}
	seen := make(map[int64]bool, len(p.Memberships))
	ids := make([]int64, 0, len(p.Memberships))
	for _, m := range p.Memberships {
		if !seen[m.AccountID] {
			seen[m.AccountID] = true
			ids = append(ids, m.AccountID)
		}
	}
	return ids
}
