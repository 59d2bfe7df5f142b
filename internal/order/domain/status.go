package domain

type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

// transitions is the order lifecycle. pending may ship or cancel; shipped
// and cancelled are terminal. Adding a state means a new constant and a
// row here, nothing else.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped:   {},
	StatusCancelled: {},
}

// CanTransition reports whether from may move to target.
func CanTransition(from, target Status) bool {
	return transitions[from][target]
}

// Transition validates the move from the order's current status and
// returns the order with the target status applied. The receiver is not
// mutated on failure.
func (o Order) Transition(target Status) (Order, error) {
	if !CanTransition(o.Status, target) {
		return o, &ErrInvalidTransition{From: o.Status, To: target}
	}
	o.Status = target
	return o, nil
}
