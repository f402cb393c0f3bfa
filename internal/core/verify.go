package core

import (
	"context"

	"custodyledger/pkg/domain"
)

// VerifyDrug cross-checks the custody chain of code against the supplied
// parties. It is Illegitimate when any party lacks its expected role,
// VerifiedLegitimate when the item was dispensed by pharmacist, and
// Unverified otherwise.
func (s *Service) VerifyDrug(ctx context.Context, code ItemCode, manufacturer, distributor, pharmacist Identity) (VerificationOutcome, error) {
	outcome := Illegitimate
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		outcome = verify(v, code, manufacturer, distributor, pharmacist)
		return nil
	})
	return outcome, err
}

func verify(v domain.TransactionView, code ItemCode, manufacturer, distributor, pharmacist Identity) VerificationOutcome {
	if v.RoleOf(manufacturer) != RoleManufacturer ||
		v.RoleOf(distributor) != RoleDistributor ||
		v.RoleOf(pharmacist) != RolePharmacist {
		return Illegitimate
	}
	status := lookupItem(v, code)
	if status.State == StateDispensed && status.Custodian == pharmacist {
		return VerifiedLegitimate
	}
	return Unverified
}
