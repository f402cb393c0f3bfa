package core

import (
	"strings"

	"custodyledger/pkg/domain"
)

// Operation names a public ledger call. Values match the API surface.
type Operation string

// Ledger operations.
const (
	OpRegister                Operation = "register"
	OpUnregister              Operation = "unregister"
	OpApproveDrug             Operation = "approveDrug"
	OpSuspendDrug             Operation = "suspendDrug"
	OpManufactureDrug         Operation = "manufactureDrug"
	OpDispatchToDistributor   Operation = "dispatchToDistributor"
	OpReceiveFromManufacturer Operation = "receiveFromManufacturer"
	OpDispatchToPharmacist    Operation = "dispatchToPharmacist"
	OpReceiveFromDistributor  Operation = "receiveFromDistributor"
	OpDispenseToConsumer      Operation = "dispenseToConsumer"
	OpUpdateHash              Operation = "updateHash"
	OpAnchorDocument          Operation = "anchorDocument"
	OpBootstrap               Operation = "bootstrap"
)

// transition is one row of the custody table. A nil from list accepts any
// non-terminal state.
type transition struct {
	from      []State
	to        State
	role      Role
	integrity bool // caller digest must equal the gate
	custody   bool // custodian becomes the caller
	quote     bool // price becomes the caller's quote
	escrow    bool // caller pays the recorded price to the prior custodian
	event     EventKind
}

var transitions = map[Operation]transition{
	OpApproveDrug: {
		to: StateApproved, role: RoleRegulator, integrity: true,
		event: domain.EventApproved,
	},
	OpSuspendDrug: {
		to: StateHold, role: RoleRegulator, integrity: true,
		event: domain.EventHold,
	},
	OpManufactureDrug: {
		from: []State{StateApproved}, to: StateManufactured, role: RoleManufacturer, custody: true,
		event: domain.EventManufactured,
	},
	OpDispatchToDistributor: {
		from: []State{StateManufactured}, to: StateMftrDispatched, role: RoleManufacturer, quote: true,
		event: domain.EventMftrDispatched,
	},
	OpReceiveFromManufacturer: {
		from: []State{StateMftrDispatched}, to: StateDistrReceived, role: RoleDistributor, custody: true, escrow: true,
		event: domain.EventDistrReceived,
	},
	OpDispatchToPharmacist: {
		from: []State{StateDistrReceived}, to: StateDistrDispatched, role: RoleDistributor, quote: true,
		event: domain.EventDistrDispatched,
	},
	OpReceiveFromDistributor: {
		from: []State{StateDistrDispatched}, to: StatePharReceived, role: RolePharmacist, custody: true, escrow: true,
		event: domain.EventPharReceived,
	},
	OpDispenseToConsumer: {
		from: []State{StatePharReceived}, to: StateDispensed, role: RolePharmacist, quote: true,
		event: domain.EventDispensed,
	},
}

// permits reports whether an item in state current may take this transition.
func (t transition) permits(current State) bool {
	if current.Terminal() {
		return false
	}
	if t.from == nil {
		return true
	}
	for _, s := range t.from {
		if s == current {
			return true
		}
	}
	return false
}

// expected describes the accepted source states for error messages.
func (t transition) expected() string {
	if t.from == nil {
		return "any non-terminal state"
	}
	names := make([]string, len(t.from))
	for i, s := range t.from {
		names[i] = string(s)
	}
	return strings.Join(names, " or ")
}

// edgeAllowed reports whether some operation in the table moves an item from
// before to after. Unchanged states are always allowed outside the terminal state.
func edgeAllowed(before, after State) bool {
	if before.Terminal() {
		return before == after
	}
	if before == after {
		return true
	}
	for _, t := range transitions {
		if t.to == after && t.permits(before) {
			return true
		}
	}
	return false
}

func (o Operation) String() string { return string(o) }
