// Package hook runs code around dispatches.
//
// A Chain holds the hooks installed on one dispatcher. Each hook is installed
// with a Match that narrows it to some actions, to dispatches whose resolved
// scope carries given dimension values, or both:
//
//	chain.Add(hook.NewAuditHook(logger), hook.Match{})
//	chain.Add(hook.NewActionFilterHook("no-prod-deletes", hook.PriorityFilter,
//	    func(inv *hook.Invocation) (bool, string) {
//	        return false, "deletes are disabled in prod"
//	    }),
//	    hook.Match{Actions: []string{"delete_user"}, Scope: scope.Scope{"environment": "prod"}})
//
// Pre-dispatch hooks run from highest to lowest priority once the handler is
// resolved; the first to return false cancels the dispatch. Post-dispatch
// hooks run in the reverse order and observe the result and error without
// replacing them. Installing a hook under an existing name replaces it.
//
// Every hook receives an *Invocation carrying a unique ID, the action, the
// resolved scope and the parameters the handler will receive.
//
// Built-in hooks:
//
//   - AuditHook logs dispatch start and completion through a logr.Logger
//   - TimingHook reports handler durations to a callback
//   - ValidationHook cancels dispatches failing a validation function
//   - ActionFilterHook allows or denies by a filter function, recording the reason
package hook
