// Package engine decides whether a lifecycle action is legal. It is the sole
// authority on transitions: pure, deterministic, no I/O.
package engine

import (
	"fmt"

	"escrowd/internal/escrow/models"
	dErrors "escrowd/pkg/domain-errors"
)

// rolePermissions fixes which roles may invoke each action at all, before the
// transition table is consulted. ActionRefund has no entry on purpose: a bare
// refund outside dispute resolution is never permitted for anyone.
var rolePermissions = map[models.Action][]models.Role{
	models.ActionFund:                  {models.RoleBuyer},
	models.ActionRelease:               {models.RoleSeller},
	models.ActionDispute:               {models.RoleBuyer},
	models.ActionResolveDisputeRelease: {models.RoleAdmin},
	models.ActionResolveDisputeRefund:  {models.RoleAdmin},
	models.ActionRefund:                {},
}

// transitions is the full lifecycle. Keyed by current state; exactly one
// target state per (state, action) row, no fallback.
var transitions = map[models.State]map[models.Action]models.State{
	models.StateProposed: {
		models.ActionFund: models.StateFunded,
	},
	models.StateFunded: {
		models.ActionRelease: models.StateReleased,
		models.ActionDispute: models.StateDisputed,
	},
	models.StateDisputed: {
		models.ActionResolveDisputeRelease: models.StateReleased,
		models.ActionResolveDisputeRefund:  models.StateRefunded,
	},
}

// Decide returns the next state for (state, action, role) or a coded
// rejection. The gate order is fixed: terminal check first, then role
// permission, then the transition table.
func Decide(state models.State, action models.Action, role models.Role) (models.State, error) {
	if state.IsTerminal() {
		return "", dErrors.New(dErrors.CodeTerminalState,
			fmt.Sprintf("escrow is in terminal state %s; no further actions are allowed", state))
	}
	if !roleAllowed(action, role) {
		return "", dErrors.New(dErrors.CodeRoleNotPermitted,
			fmt.Sprintf("role %s is not permitted to perform %s", role, action))
	}
	next, ok := transitions[state][action]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot %s from state %s", action, state))
	}
	return next, nil
}

func roleAllowed(action models.Action, role models.Role) bool {
	for _, r := range rolePermissions[action] {
		if r == role {
			return true
		}
	}
	return false
}
