package domain

// State is a step in the lifecycle of one gateway request.
//
//	Received → Validated → PromptAssembled → Invoking → {Streaming|Unary} → {Completed|Failed}
//
// There is no retry or resume transition; a failed request must be
// resubmitted in full by the caller.
type State string

const (
	StateReceived        State = "received"
	StateValidated       State = "validated"
	StatePromptAssembled State = "prompt_assembled"
	StateInvoking        State = "invoking"
	StateStreaming       State = "streaming"
	StateUnary           State = "unary"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateReceived:        {StateValidated, StateFailed},
	StateValidated:       {StatePromptAssembled, StateFailed},
	StatePromptAssembled: {StateInvoking, StateFailed},
	StateInvoking:        {StateStreaming, StateUnary, StateFailed},
	StateStreaming:       {StateCompleted, StateFailed},
	StateUnary:           {StateCompleted, StateFailed},
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Completed and Failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}
