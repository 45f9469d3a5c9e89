package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrowd/internal/escrow/engine"
	"escrowd/internal/escrow/models"
	dErrors "escrowd/pkg/domain-errors"
)

func TestDecideAcceptsEveryTableRow(t *testing.T) {
	rows := []struct {
		state  models.State
		action models.Action
		role   models.Role
		next   models.State
	}{
		{models.StateProposed, models.ActionFund, models.RoleBuyer, models.StateFunded},
		{models.StateFunded, models.ActionRelease, models.RoleSeller, models.StateReleased},
		{models.StateFunded, models.ActionDispute, models.RoleBuyer, models.StateDisputed},
		{models.StateDisputed, models.ActionResolveDisputeRelease, models.RoleAdmin, models.StateReleased},
		{models.StateDisputed, models.ActionResolveDisputeRefund, models.RoleAdmin, models.StateRefunded},
	}
	for _, row := range rows {
		t.Run(string(row.state)+"/"+string(row.action), func(t *testing.T) {
			next, err := engine.Decide(row.state, row.action, row.role)
			require.NoError(t, err)
			assert.Equal(t, row.next, next)
		})
	}
}

func TestDecideRejectsTerminalStates(t *testing.T) {
	allActions := []models.Action{
		models.ActionFund, models.ActionRelease, models.ActionDispute,
		models.ActionResolveDisputeRelease, models.ActionResolveDisputeRefund,
		models.ActionRefund,
	}
	allRoles := []models.Role{models.RoleBuyer, models.RoleSeller, models.RoleAdmin}

	for _, state := range []models.State{models.StateReleased, models.StateRefunded} {
		for _, action := range allActions {
			for _, role := range allRoles {
				_, err := engine.Decide(state, action, role)
				require.Error(t, err)
				assert.True(t, dErrors.Is(err, dErrors.CodeTerminalState),
					"expected terminal rejection for %s/%s/%s, got %v", state, action, role, err)
			}
		}
	}
}

func TestDecideRejectsUnpermittedRoles(t *testing.T) {
	cases := []struct {
		name   string
		state  models.State
		action models.Action
		role   models.Role
	}{
		{"seller cannot fund", models.StateProposed, models.ActionFund, models.RoleSeller},
		{"admin cannot fund", models.StateProposed, models.ActionFund, models.RoleAdmin},
		{"buyer cannot release", models.StateFunded, models.ActionRelease, models.RoleBuyer},
		{"seller cannot dispute", models.StateFunded, models.ActionDispute, models.RoleSeller},
		{"buyer cannot resolve a dispute", models.StateDisputed, models.ActionResolveDisputeRelease, models.RoleBuyer},
		{"seller cannot resolve a dispute", models.StateDisputed, models.ActionResolveDisputeRefund, models.RoleSeller},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Decide(tc.state, tc.action, tc.role)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeRoleNotPermitted), "got %v", err)
		})
	}
}

// A bare refund is reserved: no role may invoke it from any state.
func TestDecideNeverPermitsBareRefund(t *testing.T) {
	for _, state := range []models.State{models.StateProposed, models.StateFunded, models.StateDisputed} {
		for _, role := range []models.Role{models.RoleBuyer, models.RoleSeller, models.RoleAdmin} {
			_, err := engine.Decide(state, models.ActionRefund, role)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeRoleNotPermitted),
				"expected role rejection for %s/%s, got %v", state, role, err)
		}
	}
}

// Role permission passing is not enough: the pair must be in the table.
func TestDecideRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name   string
		state  models.State
		action models.Action
		role   models.Role
	}{
		{"fund while already funded", models.StateFunded, models.ActionFund, models.RoleBuyer},
		{"release before funding", models.StateProposed, models.ActionRelease, models.RoleSeller},
		{"dispute before funding", models.StateProposed, models.ActionDispute, models.RoleBuyer},
		{"resolve without a dispute", models.StateFunded, models.ActionResolveDisputeRelease, models.RoleAdmin},
		{"resolve refund without a dispute", models.StateProposed, models.ActionResolveDisputeRefund, models.RoleAdmin},
		{"release a disputed escrow directly", models.StateDisputed, models.ActionRelease, models.RoleSeller},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Decide(tc.state, tc.action, tc.role)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition), "got %v", err)
		})
	}
}

// The terminal gate runs before the role gate, so even a role that could
// never act gets the terminal reason once the escrow is settled.
func TestTerminalCheckPrecedesRoleCheck(t *testing.T) {
	_, err := engine.Decide(models.StateReleased, models.ActionRefund, models.RoleSeller)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeTerminalState))
}
