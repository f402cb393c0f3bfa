package core

import (
	"context"

	"custodyledger/pkg/domain"
)

// CurrentDigest returns the integrity gate.
func (s *Service) CurrentDigest(ctx context.Context) (Gate, error) {
	var gate Gate
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		gate = v.Gate()
		return nil
	})
	return gate, err
}

// UpdateHash overwrites the integrity digest. With the open hash policy any
// caller may do so.
func (s *Service) UpdateHash(ctx context.Context, caller Identity, digest Digest) (Gate, Result, error) {
	return s.setDigest(ctx, OpUpdateHash, caller, digest)
}

func (s *Service) setDigest(ctx context.Context, op Operation, caller Identity, digest Digest) (Gate, Result, error) {
	var updated Gate
	c := call{op: op, entity: EntityGate, id: digest.Hex(), actor: caller}
	res, err := s.run(ctx, c, func(tx domain.Transaction) error {
		if err := requirePolicy(tx, s.opts.hashPolicy, op, caller); err != nil {
			return err
		}
		var err error
		updated, err = tx.SetGate(Gate{Digest: digest, UpdatedBy: caller})
		return err
	})
	if err != nil {
		return Gate{}, res, err
	}
	return updated, res, nil
}

// checkIntegrity fails with INTEGRITY_MISMATCH unless supplied equals the gate.
func checkIntegrity(tx domain.Transaction, op Operation, supplied Digest) error {
	if current := tx.Gate().Digest; current != supplied {
		return domain.WithMetadata(domain.CodeIntegrityMismatch,
			op.String()+" digest does not match the integrity gate",
			map[string]string{"supplied": supplied.Hex()})
	}
	return nil
}
