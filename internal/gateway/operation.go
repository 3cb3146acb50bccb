package gateway

import (
	"fmt"
	"sync"
)

// Sender delivers one outbound DCSS message per call. Satisfied by
// *dcss.Client.
type Sender interface {
	Send(message string) error
}

// Operation outcomes on the wire.
const (
	OutcomeNormal = "normal"
	OutcomeError  = "error"
)

// Operation tracks one DCSS operation handle from dispatch to
// completion.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The terminal transition happens exactly once: later Complete or
//     Fail calls are ignored, as are updates after completion.
type Operation struct {
	name   string
	handle string
	sender Sender

	mu         sync.Mutex
	done       bool
	onComplete func(outcome, message string)
}

// NewOperation creates an operation for a DCSS handle. Completion
// messages are sent through sender.
func NewOperation(name, handle string, sender Sender) *Operation {
	return &Operation{name: name, handle: handle, sender: sender}
}

// Name returns the DCSS operation name.
func (o *Operation) Name() string { return o.name }

// Handle returns the DCSS operation handle.
func (o *Operation) Handle() string { return o.handle }

// SetOnComplete registers fn to run once, when the operation reaches
// its terminal state. Used to release the busy slot and journal the
// outcome.
func (o *Operation) SetOnComplete(fn func(outcome, message string)) {
	o.mu.Lock()
	o.onComplete = fn
	o.mu.Unlock()
}

// Update sends a non-terminal progress message. Updates after
// completion are dropped.
func (o *Operation) Update(message string) error {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done {
		return nil
	}
	return o.sender.Send(fmt.Sprintf("htos_operation_update %s %s %s", o.name, o.handle, message))
}

// Complete finishes the operation successfully.
func (o *Operation) Complete(message string) error {
	return o.finish(OutcomeNormal, message)
}

// Fail finishes the operation with an error message.
func (o *Operation) Fail(message string) error {
	return o.finish(OutcomeError, message)
}

// Discard finishes the operation without a wire message: the hook runs
// with a normal outcome and later terminal calls are ignored, but
// nothing reaches DCSS. Used where the protocol caller must not
// receive a completion.
func (o *Operation) Discard(message string) {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.done = true
	fn := o.onComplete
	o.mu.Unlock()

	if fn != nil {
		fn(OutcomeNormal, message)
	}
}

func (o *Operation) finish(outcome, message string) error {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return nil
	}
	o.done = true
	fn := o.onComplete
	o.mu.Unlock()

	err := o.sender.Send(fmt.Sprintf("htos_operation_completed %s %s %s %s",
		o.name, o.handle, outcome, message))

	if fn != nil {
		fn(outcome, message)
	}
	return err
}
