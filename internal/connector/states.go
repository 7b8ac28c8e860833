package connector

// State is a step of the connection flow for one candidate.
type State string

const (
	Idle                 State = "idle"
	Navigated            State = "navigated"
	ActionControlLocated State = "action-control-located"
	NoteOpened           State = "note-opened"
	WithoutNote          State = "without-note"
	Submitted            State = "submitted"
	Verified             State = "verified"
	Skipped              State = "skipped"
	Failed               State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Verified || s == Skipped || s == Failed
}

// Reasons attached to Skipped and Failed results.
const (
	ReasonNavigation           = "navigation"
	ReasonNoActionControl      = "no-action-control"
	ReasonActionControl        = "action-control"
	ReasonSubmitControlMissing = "submit-control-missing"
	ReasonSubmit               = "submit"
	ReasonTab                  = "tab"
)

// Transition declares where a state goes when its guard holds, when it does
// not hold and when the session fails while evaluating it.
type Transition struct {
	From          State
	Guard         string
	Success       State
	Failure       State
	FailureReason string
	Error         State
	ErrorReason   string
}

// Transitions is the complete table driving the agent.
var Transitions = []Transition{
	{
		From:          Idle,
		Guard:         "open profile",
		Success:       Navigated,
		Failure:       Failed,
		FailureReason: ReasonNavigation,
		Error:         Failed,
		ErrorReason:   ReasonNavigation,
	},
	{
		From:          Navigated,
		Guard:         "locate action control",
		Success:       ActionControlLocated,
		Failure:       Skipped,
		FailureReason: ReasonNoActionControl,
		Error:         Failed,
		ErrorReason:   ReasonActionControl,
	},
	{
		From:          ActionControlLocated,
		Guard:         "activate action control and open note",
		Success:       NoteOpened,
		Failure:       WithoutNote,
		Error:         Failed,
		ErrorReason:   ReasonActionControl,
	},
	{
		From:          NoteOpened,
		Guard:         "submit with note",
		Success:       Submitted,
		Failure:       Failed,
		FailureReason: ReasonSubmitControlMissing,
		Error:         Failed,
		ErrorReason:   ReasonSubmit,
	},
	{
		From:          WithoutNote,
		Guard:         "submit without note",
		Success:       Submitted,
		Failure:       Failed,
		FailureReason: ReasonSubmitControlMissing,
		Error:         Failed,
		ErrorReason:   ReasonSubmit,
	},
	{
		// The invitation is already out; confirmation only decides the flag.
		From:    Submitted,
		Guard:   "observe confirmation",
		Success: Verified,
		Failure: Verified,
		Error:   Verified,
	},
}

func transitionFrom(s State) (Transition, bool) {
	for _, t := range Transitions {
		if t.From == s {
			return t, true
		}
	}
	return Transition{}, false
}
