package discord

import (
	"slices"
)

// PermissionChecker decides whether an invoking member may run restricted
// commands.
type PermissionChecker struct {
	operatorRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given operator
// role id.
func NewPermissionChecker(operatorRoleID string) *PermissionChecker {
	return &PermissionChecker{operatorRoleID: operatorRoleID}
}

// IsOperator reports whether inv was run by a member holding the operator
// role. If no role is configured every user is an operator. Invocations
// outside a guild carry no roles and are rejected when a role is set.
func (p *PermissionChecker) IsOperator(inv *Invocation) bool {
	if p == nil || p.operatorRoleID == "" {
		return true
	}
	return slices.Contains(inv.Roles, p.operatorRoleID)
}
