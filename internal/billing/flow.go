package billing

import (
	"strings"
	"time"
)

// FlowState tracks the payment verification screen.
type FlowState string

const (
	StateProcessing FlowState = "processing"
	StateSuccess    FlowState = "success"
	StateFailed     FlowState = "failed"
)

const (
	successRedirectDelay = 2 * time.Second
	failureRedirectDelay = 3 * time.Second

	successPath = "/"
	failurePath = "/billing"

	// DefaultSuccessMessage confirms activation when the gateway gives no detail.
	DefaultSuccessMessage = "Your subscription is now active."
	// GenericFailureMessage covers failures where the gateway gave no detail.
	GenericFailureMessage = "Payment verification failed. Please try again."
	// FallbackMessage covers unexpected states where no outcome is known.
	FallbackMessage = "Something went wrong while processing your payment."
)

// Navigation is the single deferred redirect a terminal state schedules.
type Navigation struct {
	Path            string
	Delay           time.Duration
	WithSuccessFlag bool
}

// DelayMS exposes the delay in milliseconds for templates.
func (n Navigation) DelayMS() int64 {
	return n.Delay.Milliseconds()
}

// Target returns the redirect path including the success flag when set.
func (n Navigation) Target() string {
	if n.WithSuccessFlag {
		return n.Path + "?payment=success"
	}
	return n.Path
}

// Flow is the verification state machine. It starts in processing and
// transitions to exactly one terminal state; each terminal state schedules
// exactly one navigation. Later transition attempts are ignored.
type Flow struct {
	state   FlowState
	message string
	nav     *Navigation
}

// NewFlow starts a verification in the processing state.
func NewFlow() *Flow {
	return &Flow{state: StateProcessing}
}

// Succeed moves the flow to success and schedules the home redirect.
// Returns false if the flow already reached a terminal state.
func (f *Flow) Succeed(message string) bool {
	if f.state != StateProcessing {
		return false
	}
	f.state = StateSuccess
	f.message = resolveMessage(message, DefaultSuccessMessage)
	f.nav = &Navigation{
		Path:            successPath,
		Delay:           successRedirectDelay,
		WithSuccessFlag: true,
	}
	return true
}

// Fail moves the flow to failed and schedules the billing redirect.
// Returns false if the flow already reached a terminal state.
func (f *Flow) Fail(message string) bool {
	if f.state != StateProcessing {
		return false
	}
	f.state = StateFailed
	f.message = resolveMessage(message, GenericFailureMessage)
	f.nav = &Navigation{
		Path:  failurePath,
		Delay: failureRedirectDelay,
	}
	return true
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	return f.state
}

// Message returns the user-facing outcome message.
func (f *Flow) Message() string {
	if f.state == StateProcessing {
		return ""
	}
	if f.message == "" {
		return FallbackMessage
	}
	return f.message
}

// Navigation returns the scheduled redirect, nil while processing.
func (f *Flow) Navigation() *Navigation {
	return f.nav
}

// resolveMessage applies the detail-then-generic fallback chain.
func resolveMessage(detail, generic string) string {
	detail = strings.TrimSpace(detail)
	if detail != "" {
		return detail
	}
	if generic != "" {
		return generic
	}
	return FallbackMessage
}
