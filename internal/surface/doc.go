// Package surface implements the embedded web content surface both
// halves of the widget render into.
//
// A Surface owns a goja JavaScript runtime, a set of named message
// channels page scripts post into, and a navigation path that fetches
// a page, propagates its cookies, and executes its inline scripts.
//
// Threading model:
//   - The runtime is touched only from the surface's own evaluation
//     goroutine; Evaluate and Navigate post work onto it.
//   - Channel deliveries and evaluation completions hop onto the host
//     dispatch queue, so the coordinator observes everything from a
//     single serialized context.
//
// Channel handlers are registered through a detachable adapter: after
// Detach, deliveries from in-flight page scripts are dropped instead
// of reaching a torn-down coordinator.
package surface
