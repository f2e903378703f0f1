package domain

// Roles carried in the JWT "role" claim.
const (
	RoleAdmin   = "admin"
	RoleBranch  = "branch"
	RoleCourier = "courier"
	RoleFinance = "finance"
)

// Actor is the authenticated caller recorded on history entries and installments.
type Actor struct {
	ID       string
	Role     string
	BranchID string
}

// CanActFor reports whether the actor may operate on records of branchID.
// Branch staff are bound to their own branch; other roles are not.
func (a Actor) CanActFor(branchID string) bool {
	if a.Role != RoleBranch {
		return true
	}
	return a.BranchID != "" && a.BranchID == branchID
}
