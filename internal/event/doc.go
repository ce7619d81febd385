// Package event is the engine's broadcast bus: every CommandResult side
// effect the dispatcher produces (session/node/graph/workflow transitions)
// is published here as a types.Event, and the HTTP transport's WebSocket
// feed (/api/events) subscribes to it. Node history is not fed from this
// bus: internal/engine appends history entries directly.
//
// Publish is for fire-and-forget observers; PublishSync is for observers
// that must see events in the exact causal order the engine produced them
// (such as the per-connection WebSocket writer) before the triggering
// command handler returns.
package event
