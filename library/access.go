package library

// Role is what the identity layer says about a caller.
type Role string

const (
	RoleAnonymous Role = ""
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// ParseRole accepts the stored/role-header spelling of a role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return RoleAnonymous, false
}

// Caller identifies who is performing an operation.
type Caller struct {
	Username string
	Role     Role
}

// Anonymous is the caller of a request without credentials.
var Anonymous = Caller{}

func (c Caller) Authenticated() bool { return c.Role == RoleUser || c.Role == RoleAdmin }
func (c Caller) IsAdmin() bool       { return c.Role == RoleAdmin }

// Resource names an entity type for access checks and errors.
type Resource string

const (
	ResourceAuthor       Resource = "author"
	ResourceBook         Resource = "book"
	ResourceMember       Resource = "member"
	ResourceBorrowRecord Resource = "borrow record"
	ResourceUser         Resource = "user"
)

type Operation string

const (
	OpList          Operation = "list"
	OpRetrieve      Operation = "retrieve"
	OpCreate        Operation = "create"
	OpUpdate        Operation = "update"
	OpPartialUpdate Operation = "partial_update"
	OpDelete        Operation = "delete"
)

type Tier int

const (
	TierRead Tier = iota
	TierPrivileged
)

func (op Operation) Tier() Tier {
	if op == OpList || op == OpRetrieve {
		return TierRead
	}
	return TierPrivileged
}

// Requirement is the minimum caller standing for a tier.
type Requirement int

const (
	RequireAuthenticated Requirement = iota
	RequireAdmin
)

// Policy holds one requirement per tier.
type Policy struct {
	Read       Requirement
	Privileged Requirement
}

func (p Policy) requirement(t Tier) Requirement {
	if t == TierRead {
		return p.Read
	}
	return p.Privileged
}

var policies = map[Resource]Policy{
	ResourceAuthor:       {Read: RequireAuthenticated, Privileged: RequireAdmin},
	ResourceBook:         {Read: RequireAuthenticated, Privileged: RequireAdmin},
	ResourceMember:       {Read: RequireAdmin, Privileged: RequireAdmin},
	ResourceBorrowRecord: {Read: RequireAuthenticated, Privileged: RequireAdmin},
}

// Authorize decides whether caller may run op on res. Resources without a
// policy are admin-only.
func Authorize(caller Caller, res Resource, op Operation) error {
	policy, ok := policies[res]
	if !ok {
		policy = Policy{Read: RequireAdmin, Privileged: RequireAdmin}
	}

	if !caller.Authenticated() {
		return &AuthorizationError{Resource: res, Operation: op, Err: ErrNotAuthenticated}
	}
	if policy.requirement(op.Tier()) == RequireAdmin && !caller.IsAdmin() {
		return &AuthorizationError{Resource: res, Operation: op, Err: ErrPermissionDenied}
	}
	return nil
}
