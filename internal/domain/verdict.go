package domain

// Action is the decision produced by the signal evaluator for one tick.
type Action string

const (
	ActionHold         Action = "HOLD"
	ActionEnterLong    Action = "ENTER_LONG"
	ActionEnterShort   Action = "ENTER_SHORT"
	ActionClose        Action = "CLOSE"
	ActionPartialClose Action = "PARTIAL_CLOSE"
)

// Verdict maps the current z-score and position state to an action.
// Reason is set for ActionClose and ActionPartialClose; Fraction is the
// portion of the position to unwind and is only set for ActionPartialClose.
type Verdict struct {
	Action   Action
	Reason   CloseReason
	Fraction float64
}

// Hold is the no-op verdict.
var Hold = Verdict{Action: ActionHold}
