package domain

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// allowedTransitions lists every target reachable from a status. Forward skips are
// allowed (a dish can go straight to ready); backwards moves are not.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusReady, StatusCompleted, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCompleted, StatusCancelled},
	StatusReady:     {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// canonicalNext is the single step the kitchen board normally takes from each status.
var canonicalNext = map[OrderStatus]OrderStatus{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

var ActiveStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady}

func ParseOrderStatus(value string) (OrderStatus, bool) {
	s := OrderStatus(value)
	_, ok := allowedTransitions[s]
	return s, ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s OrderStatus) IsActive() bool {
	return s == StatusPending || s == StatusPreparing || s == StatusReady
}

// IsValidTransition reports whether current may move to next. Same-status writes are not
// transitions.
func IsValidTransition(current, next OrderStatus) bool {
	if current == next {
		return false
	}
	for _, s := range allowedTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// IsSkippedStep reports a valid forward move that bypasses the canonical next status.
func IsSkippedStep(current, next OrderStatus) bool {
	if next == StatusCancelled {
		return false
	}
	want, ok := canonicalNext[current]
	return ok && want != next
}
