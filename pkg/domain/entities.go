// Package domain defines the custody ledger's value types and the contracts
// shared by the service engine and its persistence, funds and event backends.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the kind of record captured in a Change.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityItem identifies an item custody record.
	EntityItem EntityType = "item"
	// EntityRole identifies a role assignment.
	EntityRole EntityType = "role"
	// EntityGate identifies the integrity gate digest.
	EntityGate EntityType = "gate"
)

// ItemCode is the stable numeric identifier of a physical good, such as a
// national drug code.
type ItemCode uint64

// ParseItemCode parses a decimal item code.
func ParseItemCode(raw string) (ItemCode, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, Errorf(CodeInvalidArgument, "invalid item code %q", raw)
	}
	return ItemCode(v), nil
}

func (c ItemCode) String() string { return strconv.FormatUint(uint64(c), 10) }

// State enumerates the custody lifecycle of an item.
type State string

// Custody states in required order. Hold is a regulator-only side state.
const (
	StateApproved        State = "approved"
	StateHold            State = "hold"
	StateManufactured    State = "manufactured"
	StateMftrDispatched  State = "mftr_dispatched"
	StateDistrReceived   State = "distr_received"
	StateDistrDispatched State = "distr_dispatched"
	StatePharReceived    State = "phar_received"
	StateDispensed       State = "dispensed"
)

var validStates = map[State]struct{}{
	StateApproved:        {},
	StateHold:            {},
	StateManufactured:    {},
	StateMftrDispatched:  {},
	StateDistrReceived:   {},
	StateDistrDispatched: {},
	StatePharReceived:    {},
	StateDispensed:       {},
}

// Valid reports whether s is a known custody state.
func (s State) Valid() bool {
	_, ok := validStates[s]
	return ok
}

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool { return s == StateDispensed }

// Role is the capability class assigned to an identity.
type Role string

// Roles recognised by the registry. RoleUnassigned is the zero value.
const (
	RoleUnassigned   Role = ""
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RolePharmacist   Role = "pharmacist"
	RoleRegulator    Role = "regulator"
)

// ParseRole converts a role name into a Role. Unassigned is accepted.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleManufacturer:
		return RoleManufacturer, nil
	case RoleDistributor:
		return RoleDistributor, nil
	case RolePharmacist:
		return RolePharmacist, nil
	case RoleRegulator:
		return RoleRegulator, nil
	case RoleUnassigned, "unassigned":
		return RoleUnassigned, nil
	default:
		return RoleUnassigned, Errorf(CodeInvalidArgument, "unknown role %q", raw)
	}
}

// IsMember reports whether r is one of the four member roles.
func (r Role) IsMember() bool {
	switch r {
	case RoleManufacturer, RoleDistributor, RolePharmacist, RoleRegulator:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if r == RoleUnassigned {
		return "unassigned"
	}
	return string(r)
}

// Item is the custody record stored per item code.
type Item struct {
	Code      ItemCode  `json:"code"`
	State     State     `json:"state"`
	Custodian Identity  `json:"custodian"`
	Price     uint64    `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultItem is the record observed for a code that was never written.
func DefaultItem(code ItemCode) Item {
	return Item{Code: code, State: StateApproved}
}

// ItemStatus is the read model returned for an item code. Recorded is false
// when the code has never been written and the default record is returned.
type ItemStatus struct {
	Item
	Recorded bool `json:"recorded"`
}

// RoleAssignment binds an identity to a role.
type RoleAssignment struct {
	Identity   Identity  `json:"identity"`
	Role       Role      `json:"role"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Gate holds the process-wide integrity digest.
type Gate struct {
	Digest    Digest    `json:"digest"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy Identity  `json:"updated_by"`
}

// VerificationOutcome is the result of cross-checking an item's custody chain.
type VerificationOutcome int

// Verification outcomes keep their numeric codes stable for API clients.
const (
	Illegitimate       VerificationOutcome = 0
	VerifiedLegitimate VerificationOutcome = 1
	Unverified         VerificationOutcome = 2
)

func (o VerificationOutcome) String() string {
	switch o {
	case Illegitimate:
		return "illegitimate"
	case VerifiedLegitimate:
		return "verified_legitimate"
	case Unverified:
		return "unverified"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Severity determines commit behavior for rule violations.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation recorded within a transaction. Before and After
// hold value copies of the affected record (Item, RoleAssignment or Gate).
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action enumerates the kinds of mutation captured in a Change.
type Action string

// Change actions. Records are never deleted, only upserted or revoked.
const (
	// ActionCreate indicates a record was written for the first time.
	ActionCreate Action = "create"
	// ActionUpdate indicates an existing record was overwritten.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates rule violations.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
