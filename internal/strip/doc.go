// Package strip implements the proxy coordinator at the heart of the
// widget: a state machine that owns the strip and story surfaces,
// relays string messages between them, and reports load, readiness,
// and visibility transitions to the host.
//
// Protocol summary:
//   - The strip surface loads a tokenized URL and emits "loaded" with
//     its negotiated height, "initial" with a deferred handoff message,
//     and "open" when a unit should expand.
//   - The story surface emits "isReady" once interactive, "next" when
//     it consumed the handoff, and "off" when it should hide.
//   - Everything else is proxied verbatim to the opposite surface,
//     suppressed when identical to the last message sent there.
//
// Tags are matched by substring containment against the fixed token
// vocabulary; bodies may carry a JSON object after the tag. Only the
// "loaded" body is decoded, to extract the height field.
//
// All protocol state is mutated on one dispatch queue. Delegate
// notifications and data-source lookups fire on that queue; both are
// non-owning references the host sets and may clear.
package strip
