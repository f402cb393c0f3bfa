package core

import "custodyledger/pkg/domain"

type (
	EntityType          = domain.EntityType
	ItemCode            = domain.ItemCode
	Item                = domain.Item
	ItemStatus          = domain.ItemStatus
	State               = domain.State
	Role                = domain.Role
	Identity            = domain.Identity
	Digest              = domain.Digest
	RoleAssignment      = domain.RoleAssignment
	Gate                = domain.Gate
	VerificationOutcome = domain.VerificationOutcome
	Event               = domain.Event
	EventKind           = domain.EventKind
	Severity            = domain.Severity
	Change              = domain.Change
	Action              = domain.Action
	Violation           = domain.Violation
	Result              = domain.Result
	RuleViolationError  = domain.RuleViolationError
)

const (
	EntityItem = domain.EntityItem
	EntityRole = domain.EntityRole
	EntityGate = domain.EntityGate
)

const (
	StateApproved        = domain.StateApproved
	StateHold            = domain.StateHold
	StateManufactured    = domain.StateManufactured
	StateMftrDispatched  = domain.StateMftrDispatched
	StateDistrReceived   = domain.StateDistrReceived
	StateDistrDispatched = domain.StateDistrDispatched
	StatePharReceived    = domain.StatePharReceived
	StateDispensed       = domain.StateDispensed
)

const (
	RoleUnassigned   = domain.RoleUnassigned
	RoleManufacturer = domain.RoleManufacturer
	RoleDistributor  = domain.RoleDistributor
	RolePharmacist   = domain.RolePharmacist
	RoleRegulator    = domain.RoleRegulator
)

const (
	Illegitimate       = domain.Illegitimate
	VerifiedLegitimate = domain.VerifiedLegitimate
	Unverified         = domain.Unverified
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
