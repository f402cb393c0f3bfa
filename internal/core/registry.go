package core

import (
	"context"
	"fmt"

	"custodyledger/pkg/domain"
)

// Register assigns role to id. It fails with ALREADY_REGISTERED when id is
// already a member. Caller authorization follows the registration policy.
func (s *Service) Register(ctx context.Context, caller, id Identity, role Role) (RoleAssignment, Result, error) {
	var assigned RoleAssignment
	c := call{op: OpRegister, entity: EntityRole, id: id.Hex(), actor: caller}
	res, err := s.run(ctx, c, func(tx domain.Transaction) error {
		if !role.IsMember() {
			return domain.Errorf(domain.CodeInvalidArgument, "cannot register %s without a role", id.Hex())
		}
		if err := requirePolicy(tx, s.opts.registrationPolicy, OpRegister, caller); err != nil {
			return err
		}
		if current := tx.RoleOf(id); current.IsMember() {
			return domain.WithMetadata(domain.CodeAlreadyRegistered,
				fmt.Sprintf("%s is already registered as %s", id.Hex(), current),
				map[string]string{"identity": id.Hex(), "role": current.String()})
		}
		var err error
		assigned, err = tx.AssignRole(id, role)
		return err
	})
	if err != nil {
		return RoleAssignment{}, res, err
	}
	s.publish(ctx, Event{Kind: domain.EventRegistered, Identity: id, Actor: caller})
	return assigned, res, nil
}

// Unregister resets id to Unassigned, failing with NOT_A_MEMBER when it holds
// no role.
func (s *Service) Unregister(ctx context.Context, caller, id Identity) (RoleAssignment, Result, error) {
	var revoked RoleAssignment
	c := call{op: OpUnregister, entity: EntityRole, id: id.Hex(), actor: caller}
	res, err := s.run(ctx, c, func(tx domain.Transaction) error {
		if err := requirePolicy(tx, s.opts.registrationPolicy, OpUnregister, caller); err != nil {
			return err
		}
		if !tx.RoleOf(id).IsMember() {
			return domain.WithMetadata(domain.CodeNotAMember,
				fmt.Sprintf("%s is not a member", id.Hex()),
				map[string]string{"identity": id.Hex()})
		}
		var err error
		revoked, err = tx.RevokeRole(id)
		return err
	})
	if err != nil {
		return RoleAssignment{}, res, err
	}
	s.publish(ctx, Event{Kind: domain.EventUnregistered, Identity: id, Actor: caller})
	return revoked, res, nil
}

// RoleOf returns id's role, Unassigned for unknown identities.
func (s *Service) RoleOf(ctx context.Context, id Identity) (Role, error) {
	var role Role
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		role = v.RoleOf(id)
		return nil
	})
	return role, err
}

// Members lists current role assignments ordered by identity.
func (s *Service) Members(ctx context.Context) ([]RoleAssignment, error) {
	var members []RoleAssignment
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		members = v.ListMembers()
		return nil
	})
	return members, err
}
