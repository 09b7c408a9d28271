package hook

import (
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// Standard hook priorities.
const (
	PriorityAudit      = 1000 // Runs first (pre) / last (post)
	PriorityValidation = 800  // Validate before the handler runs
	PriorityFilter     = 700  // Allow/deny decisions
)

// FilterReasonKey is the invocation data key holding an ActionFilterHook's
// denial reason.
const FilterReasonKey = "filter_reason"

// AuditHook logs all dispatched actions for debugging and audit trails.
type AuditHook struct {
	logger logr.Logger
}

// NewAuditHook creates an audit hook with the given logger.
func NewAuditHook(logger logr.Logger) *AuditHook {
	return &AuditHook{logger: logger.WithName("audit")}
}

// Name implements Hook.
func (h *AuditHook) Name() string { return "audit" }

// Priority implements Hook.
func (h *AuditHook) Priority() int { return PriorityAudit }

// PreDispatch logs the action being dispatched.
func (h *AuditHook) PreDispatch(inv *Invocation) bool {
	h.logger.V(1).Info("dispatch start",
		"id", inv.ID,
		"action", inv.Action,
		"scope", inv.Scope.String(),
	)
	return true
}

// PostDispatch logs the dispatch outcome.
func (h *AuditHook) PostDispatch(inv *Invocation, _ any, err error) {
	if err != nil {
		h.logger.Error(err, "dispatch failed",
			"id", inv.ID,
			"action", inv.Action,
			"scope", inv.Scope.String(),
		)
		return
	}
	h.logger.V(1).Info("dispatch complete",
		"id", inv.ID,
		"action", inv.Action,
		"duration", time.Since(inv.Started),
	)
}

// TimingHook measures handler execution time.
// Start times live on the invocation so concurrent dispatches do not collide.
type TimingHook struct {
	callback func(action string, duration time.Duration)
}

const timingStartKey = "_timing_start"

// NewTimingHook creates a timing hook.
func NewTimingHook(callback func(action string, duration time.Duration)) *TimingHook {
	return &TimingHook{callback: callback}
}

// Name implements Hook.
func (h *TimingHook) Name() string { return "timing" }

// Priority implements Hook.
func (h *TimingHook) Priority() int { return PriorityAudit }

// PreDispatch records the start time on the invocation.
func (h *TimingHook) PreDispatch(inv *Invocation) bool {
	inv.SetData(timingStartKey, time.Now())
	return true
}

// PostDispatch reports the duration.
func (h *TimingHook) PostDispatch(inv *Invocation, _ any, _ error) {
	v, ok := inv.GetData(timingStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if ok && h.callback != nil {
		h.callback(inv.Action, time.Since(start))
	}
}

// ValidationHook cancels dispatches that fail a validation function.
// The most recent validation error is kept for inspection.
type ValidationHook struct {
	name     string
	priority int
	validate func(inv *Invocation) error

	mu      sync.Mutex
	lastErr error
}

// NewValidationHook creates a validation hook.
func NewValidationHook(name string, priority int, validate func(*Invocation) error) *ValidationHook {
	return &ValidationHook{
		name:     name,
		priority: priority,
		validate: validate,
	}
}

// Name implements Hook.
func (h *ValidationHook) Name() string { return h.name }

// Priority implements Hook.
func (h *ValidationHook) Priority() int { return h.priority }

// PreDispatch validates the invocation and cancels if invalid.
func (h *ValidationHook) PreDispatch(inv *Invocation) bool {
	if h.validate == nil {
		return true
	}
	err := h.validate(inv)

	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()

	return err == nil
}

// LastError returns the error from the most recent validation.
func (h *ValidationHook) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// ActionFilterHook allows or blocks dispatches based on a filter function.
type ActionFilterHook struct {
	name     string
	priority int
	filter   func(inv *Invocation) (allow bool, reason string)
}

// NewActionFilterHook creates an action filter hook.
func NewActionFilterHook(name string, priority int, filter func(*Invocation) (bool, string)) *ActionFilterHook {
	return &ActionFilterHook{
		name:     name,
		priority: priority,
		filter:   filter,
	}
}

// Name implements Hook.
func (h *ActionFilterHook) Name() string { return h.name }

// Priority implements Hook.
func (h *ActionFilterHook) Priority() int { return h.priority }

// PreDispatch applies the filter. A denial reason is stored on the invocation
// under FilterReasonKey.
func (h *ActionFilterHook) PreDispatch(inv *Invocation) bool {
	if h.filter == nil {
		return true
	}
	allow, reason := h.filter(inv)
	if !allow && reason != "" {
		inv.SetData(FilterReasonKey, reason)
	}
	return allow
}
