// Package dispatcher routes actions to handlers by action name and a set of
// context dimensions.
//
// A dispatcher is created with an ordered list of dimension names, such as
// role, environment and version. Handlers are registered for an action under a
// scope that assigns values to some of those dimensions; dimensions left out
// of the scope are unset and act as a fallback for any value.
//
// # Architecture
//
//  1. Registry: a tree with one level per dimension. Each internal node
//     branches on concrete values and has a separate unset branch. Leaves map
//     action names to handlers. A flat table holds global handlers.
//
//  2. Router: resolves an action and scope. A global handler wins outright.
//     Otherwise the router walks the dimensions in order, preferring the
//     branch for the supplied value and falling back to the unset branch.
//     The walk follows one path and never backtracks.
//
//  3. Cache: an optional LRU of resolution results, owned by the dispatcher
//     and invalidated by every registry mutation.
//
// # Dispatch
//
// When an action is dispatched:
//
//  1. An empty action name fails with ErrInvalidAction
//  2. The scope is extracted from the context (see package execctx)
//  3. The handler is resolved, through the cache when enabled
//  4. Pre-dispatch hooks run and may cancel the dispatch
//  5. The handler is invoked with the context and extra parameters
//  6. Post-dispatch hooks observe the result
//  7. Metrics are recorded (if enabled)
//
// # Usage
//
//	d := dispatcher.New(dispatcher.DefaultConfig().
//	    WithDimensions("role", "environment").
//	    WithCache(0))
//
//	d.RegisterFunc("create_user", createAsAdmin, scope.Scope{"role": "admin"})
//	d.RegisterGlobalFunc("ping", pong)
//
//	result, err := d.Dispatch(map[string]string{"role": "admin"}, "create_user",
//	    handler.Params{"username": "john"})
//
// Resolution errors match ErrInvalidDimension and ErrHandlerNotFound with
// errors.Is; the typed *InvalidDimensionError and *HandlerNotFoundError carry
// the details. Handler errors are returned as the handler produced them.
package dispatcher
