package core

import (
	"context"
	"fmt"

	"custodyledger/pkg/domain"
)

// request carries the caller-supplied arguments of a custody transition.
type request struct {
	caller   Identity
	code     ItemCode
	digest   Digest // approve and suspend
	quote    uint64 // dispatch and dispense
	tendered uint64 // receive
}

// ApproveDrug moves code to Approved. Regulator only; digest must match the gate.
func (s *Service) ApproveDrug(ctx context.Context, caller Identity, code ItemCode, digest Digest) (Item, Result, error) {
	return s.transition(ctx, OpApproveDrug, request{caller: caller, code: code, digest: digest})
}

// SuspendDrug moves code to Hold. Regulator only; digest must match the gate.
func (s *Service) SuspendDrug(ctx context.Context, caller Identity, code ItemCode, digest Digest) (Item, Result, error) {
	return s.transition(ctx, OpSuspendDrug, request{caller: caller, code: code, digest: digest})
}

// ManufactureDrug takes custody of an approved item.
func (s *Service) ManufactureDrug(ctx context.Context, caller Identity, code ItemCode) (Item, Result, error) {
	return s.transition(ctx, OpManufactureDrug, request{caller: caller, code: code})
}

// DispatchToDistributor quotes price for the distributor handover.
func (s *Service) DispatchToDistributor(ctx context.Context, caller Identity, code ItemCode, price uint64) (Item, Result, error) {
	return s.transition(ctx, OpDispatchToDistributor, request{caller: caller, code: code, quote: price})
}

// ReceiveFromManufacturer pays the quoted price to the manufacturer and takes custody.
func (s *Service) ReceiveFromManufacturer(ctx context.Context, caller Identity, code ItemCode, tendered uint64) (Item, Result, error) {
	return s.transition(ctx, OpReceiveFromManufacturer, request{caller: caller, code: code, tendered: tendered})
}

// DispatchToPharmacist quotes price for the pharmacist handover.
func (s *Service) DispatchToPharmacist(ctx context.Context, caller Identity, code ItemCode, price uint64) (Item, Result, error) {
	return s.transition(ctx, OpDispatchToPharmacist, request{caller: caller, code: code, quote: price})
}

// ReceiveFromDistributor pays the quoted price to the distributor and takes custody.
func (s *Service) ReceiveFromDistributor(ctx context.Context, caller Identity, code ItemCode, tendered uint64) (Item, Result, error) {
	return s.transition(ctx, OpReceiveFromDistributor, request{caller: caller, code: code, tendered: tendered})
}

// DispenseToConsumer records the final sale; Dispensed is terminal.
func (s *Service) DispenseToConsumer(ctx context.Context, caller Identity, code ItemCode, price uint64) (Item, Result, error) {
	return s.transition(ctx, OpDispenseToConsumer, request{caller: caller, code: code, quote: price})
}

// GetStatus returns the record for code, or the default Approved record with
// Recorded=false when the code was never written.
func (s *Service) GetStatus(ctx context.Context, code ItemCode) (ItemStatus, error) {
	var status ItemStatus
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		status = lookupItem(v, code)
		return nil
	})
	return status, err
}

// Items lists every recorded item ordered by code.
func (s *Service) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		items = v.ListItems()
		return nil
	})
	return items, err
}

type itemReader interface {
	FindItem(code ItemCode) (Item, bool)
}

func lookupItem(r itemReader, code ItemCode) ItemStatus {
	item, ok := r.FindItem(code)
	if !ok {
		return ItemStatus{Item: domain.DefaultItem(code)}
	}
	return ItemStatus{Item: item, Recorded: true}
}

// transition applies one row of the custody table. Checks run in a fixed
// order: integrity, role, item existence (strict mode), state, price.
func (s *Service) transition(ctx context.Context, op Operation, req request) (Item, Result, error) {
	t, ok := transitions[op]
	if !ok {
		return Item{}, Result{}, domain.Errorf(domain.CodeInternal, "no transition registered for %s", op)
	}
	var (
		updated  Item
		transfer *domain.Transfer
	)
	c := call{op: op, entity: EntityItem, id: req.code.String(), actor: req.caller}
	res, err := s.run(ctx, c, func(tx domain.Transaction) error {
		transfer = nil
		status := lookupItem(tx, req.code)
		if t.integrity {
			if err := checkIntegrity(tx, op, req.digest); err != nil {
				return err
			}
		}
		if err := requireRole(tx, op, req.caller, t.role); err != nil {
			return err
		}
		if !status.Recorded && s.opts.strictItems && t.role != RoleRegulator {
			return domain.WithMetadata(domain.CodeUnknownItem,
				fmt.Sprintf("item %s has never been recorded", req.code),
				map[string]string{"item": req.code.String()})
		}
		if !t.permits(status.State) {
			return domain.WithMetadata(domain.CodeInvalidStateTransition,
				fmt.Sprintf("%s on item %s expects %s, found %s", op, req.code, t.expected(), status.State),
				map[string]string{"item": req.code.String(), "expected": t.expected(), "actual": string(status.State)})
		}

		next := status.Item
		next.State = t.to
		if t.escrow {
			if req.tendered != status.Price {
				return domain.WithMetadata(domain.CodePriceMismatch,
					fmt.Sprintf("item %s costs %d, tendered %d", req.code, status.Price, req.tendered),
					map[string]string{"item": req.code.String(), "price": fmt.Sprint(status.Price), "tendered": fmt.Sprint(req.tendered)})
			}
			transfer = &domain.Transfer{ItemCode: req.code, From: req.caller, To: status.Custodian, Amount: status.Price}
			pending := *transfer
			tx.OnCommit(func(ctx context.Context) error {
				return s.settle(ctx, pending)
			})
		}
		if t.custody {
			next.Custodian = req.caller
		}
		if t.quote {
			next.Price = req.quote
		}
		var err error
		updated, err = tx.UpsertItem(next)
		return err
	})
	if err != nil {
		return Item{}, res, err
	}
	event := Event{Kind: t.event, ItemCode: req.code, Identity: updated.Custodian, Actor: req.caller, Price: updated.Price}
	if transfer != nil {
		event.Price = transfer.Amount
	}
	s.publish(ctx, event)
	return updated, res, nil
}
