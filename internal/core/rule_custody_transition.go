package core

import (
	"context"
	"fmt"

	"custodyledger/pkg/domain"
)

const custodyTransitionRuleName = "custody_transition"

// CustodyTransitionRule blocks item changes whose state edge is not in the
// custody table, including any move out of the terminal state.
func CustodyTransitionRule() domain.Rule {
	return custodyTransitionRule{}
}

type custodyTransitionRule struct{}

func (custodyTransitionRule) Name() string { return custodyTransitionRuleName }

func (custodyTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityItem {
			continue
		}
		after, ok := change.After.(domain.Item)
		if !ok {
			continue
		}
		if !after.State.Valid() {
			res.Violations = append(res.Violations, violation(after.Code,
				fmt.Sprintf("item %s is set to invalid state %s", after.Code, after.State)))
			continue
		}
		before, ok := change.Before.(domain.Item)
		if !ok {
			// first write starts from the default record
			before = domain.DefaultItem(after.Code)
		}
		if !edgeAllowed(before.State, after.State) {
			res.Violations = append(res.Violations, violation(after.Code,
				fmt.Sprintf("cannot move item %s from %s to %s", after.Code, before.State, after.State)))
		}
	}
	return res, nil
}

func violation(code domain.ItemCode, msg string) domain.Violation {
	return domain.Violation{
		Rule:     custodyTransitionRuleName,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityItem,
		EntityID: code.String(),
	}
}
