package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mxrobo/robodhs/internal/robot"
)

// idleState is the status string state field when no operation holds
// the busy slot.
const idleState = "idle"

// Driver is the robot action surface the gateway dispatches to.
// Satisfied by *robot.Client.
type Driver interface {
	// Snapshot returns a deep copy of the current robot state.
	Snapshot() *robot.State

	// RequestRefresh asks the controller to republish its full state.
	RequestRefresh() error

	Clear(cb robot.Callback) error
	ClearAll(cb robot.Callback) error
	SetOutput(output robot.Output, value int, cb robot.Callback) error
	ResetPorts(ports map[robot.Position][]int, cb robot.Callback) error
	ResetHolder(position robot.Position, cb robot.Callback) error
	ResetMountCounters(cb robot.Callback) error
	SetMounted(position robot.Position, column string, row int, cb robot.Callback) error
	Probe(spec map[robot.Position][]int, cb robot.Callback) error
	Calibrate(target, runArgs string, cb robot.Callback) error
	PrepareForMount(cb robot.Callback) error
	Mount(position robot.Position, column string, row int, cb robot.Callback) error
	Dismount(position robot.Position, column string, row int, cb robot.Callback) error
	Abort() error
}

// Journal persists operation outcomes. Optional; satisfied by
// *journal.Repository.
type Journal interface {
	// Begin records a dispatched operation and returns its journal ID.
	Begin(ctx context.Context, name, handle string) (string, error)

	// Finish records the outcome of a previously begun operation.
	Finish(ctx context.Context, id, outcome, message string) error
}

// EventSink receives gateway events for time-series storage. Optional;
// satisfied by *influxdb.Client.
type EventSink interface {
	// RecordOperation stores a completed operation with its duration.
	RecordOperation(name, handle, outcome, message string, duration time.Duration)

	// RecordStatus stores a published status word and state name.
	RecordStatus(word uint32, state string)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Stats holds gateway counters for health and metrics endpoints.
type Stats struct {
	OperationsStarted   uint64
	OperationsCompleted uint64
	OperationsFailed    uint64
	OperationsRejected  uint64
	StringsPublished    uint64
	LogsSent            uint64
	CurrentOperation    string
}

// Options holds configuration for creating a gateway.
type Options struct {
	// Sender delivers outbound DCSS messages. Required.
	Sender Sender

	// Driver executes robot actions. Required.
	Driver Driver

	// Journal is optional operation persistence.
	Journal Journal

	// Sink is optional time-series output.
	Sink EventSink

	// Logger is optional structured logging.
	Logger Logger
}

// Gateway owns the DCSS-side protocol logic: operation dispatch, the
// single busy slot, and publication of the DCSS string set.
type Gateway struct {
	sender  Sender
	driver  Driver
	journal Journal
	sink    EventSink

	handlers map[string]handler

	fgMu       sync.Mutex
	foreground *Operation

	ctx       context.Context
	ctxCancel context.CancelFunc

	started   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	published atomic.Uint64
	logsSent  atomic.Uint64

	observerMu sync.RWMutex
	observer   func()

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("driver is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		sender:    opts.Sender,
		driver:    opts.Driver,
		journal:   opts.Journal,
		sink:      opts.Sink,
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    opts.Logger,
	}
	g.handlers = g.buildHandlers()
	return g, nil
}

// Close stops background journaling. In-flight operations still
// complete on the wire.
func (g *Gateway) Close() {
	g.ctxCancel()
}

// HandleLogin runs the post-handshake sequence: ask the driver for
// fresh state, then publish the full DCSS string set.
func (g *Gateway) HandleLogin() {
	if err := g.driver.RequestRefresh(); err != nil {
		g.logError("state refresh request failed", "error", err)
	}
	g.PublishAll()
	g.logInfo("login complete")
}

// HandleAbort reacts to a DCSS abort-all message by forwarding an abort
// to the robot. The running operation, if any, completes through the
// driver's end event for the aborted command.
func (g *Gateway) HandleAbort() {
	g.logInfo("abort requested")
	if err := g.driver.Abort(); err != nil {
		g.logError("abort forwarding failed", "error", err)
	}
}

// CurrentOperation returns the name of the operation holding the busy
// slot, or "idle".
func (g *Gateway) CurrentOperation() string {
	g.fgMu.Lock()
	defer g.fgMu.Unlock()
	if g.foreground == nil {
		return idleState
	}
	return g.foreground.Name()
}

// SetObserver registers a callback invoked after the gateway publishes
// state changes. Used by the API layer to push live updates.
func (g *Gateway) SetObserver(fn func()) {
	g.observerMu.Lock()
	g.observer = fn
	g.observerMu.Unlock()
}

// Snapshot returns a deep copy of the current robot state.
func (g *Gateway) Snapshot() *robot.State {
	return g.driver.Snapshot()
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		OperationsStarted:   g.started.Load(),
		OperationsCompleted: g.completed.Load(),
		OperationsFailed:    g.failed.Load(),
		OperationsRejected:  g.rejected.Load(),
		StringsPublished:    g.published.Load(),
		LogsSent:            g.logsSent.Load(),
		CurrentOperation:    g.CurrentOperation(),
	}
}

// newOperation creates an operation wired into the journal, the event
// sink and the busy slot release.
func (g *Gateway) newOperation(name, handle string) *Operation {
	op := NewOperation(name, handle, g.sender)

	journalID := ""
	if g.journal != nil {
		id, err := g.journal.Begin(g.ctx, name, handle)
		if err != nil {
			g.logWarn("journal begin failed", "operation", name, "error", err)
		} else {
			journalID = id
		}
	}

	start := time.Now()
	op.SetOnComplete(func(outcome, message string) {
		g.release(op)
		if outcome == OutcomeNormal {
			g.completed.Add(1)
		} else {
			g.failed.Add(1)
		}
		if g.journal != nil && journalID != "" {
			if err := g.journal.Finish(g.ctx, journalID, outcome, message); err != nil {
				g.logWarn("journal finish failed", "operation", name, "error", err)
			}
		}
		if g.sink != nil {
			g.sink.RecordOperation(name, handle, outcome, message, time.Since(start))
		}
		g.logInfo("operation finished",
			"operation", name, "handle", handle, "outcome", outcome)
	})
	return op
}

// acquire claims the busy slot for op. On success the status string is
// republished with op as the running state. On failure it returns the
// name of the current holder.
func (g *Gateway) acquire(op *Operation) (string, bool) {
	g.fgMu.Lock()
	if g.foreground != nil {
		holder := g.foreground.Name()
		g.fgMu.Unlock()
		return holder, false
	}
	g.foreground = op
	g.fgMu.Unlock()

	g.PublishStatus()
	return "", true
}

// release frees the busy slot if op holds it and republishes the status
// string. Safe to call for operations that never acquired the slot.
func (g *Gateway) release(op *Operation) {
	g.fgMu.Lock()
	held := g.foreground == op
	if held {
		g.foreground = nil
	}
	g.fgMu.Unlock()

	if held {
		g.PublishStatus()
	}
}

// complete finishes op successfully, logging a send failure.
func (g *Gateway) complete(op *Operation, message string) {
	if err := op.Complete(message); err != nil {
		g.logError("completion send failed",
			"operation", op.Name(), "handle", op.Handle(), "error", err)
	}
}

// fail finishes op with an error outcome, logging a send failure.
func (g *Gateway) fail(op *Operation, message string) {
	if err := op.Fail(message); err != nil {
		g.logError("completion send failed",
			"operation", op.Name(), "handle", op.Handle(), "error", err)
	}
}

// notifyObserver signals the API layer that published state changed.
func (g *Gateway) notifyObserver() {
	g.observerMu.RLock()
	fn := g.observer
	g.observerMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.loggerMu.Lock()
	g.logger = logger
	g.loggerMu.Unlock()
}

func (g *Gateway) getLogger() Logger {
	g.loggerMu.RLock()
	defer g.loggerMu.RUnlock()
	return g.logger
}

func (g *Gateway) logDebug(msg string, keysAndValues ...any) {
	if l := g.getLogger(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (g *Gateway) logInfo(msg string, keysAndValues ...any) {
	if l := g.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (g *Gateway) logWarn(msg string, keysAndValues ...any) {
	if l := g.getLogger(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (g *Gateway) logError(msg string, keysAndValues ...any) {
	if l := g.getLogger(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}

// Interface checks against the concrete implementations.
var _ Driver = (*robot.Client)(nil)
