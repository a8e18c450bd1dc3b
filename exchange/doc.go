// Package exchange defines the unit of message transfer routed by gosplit.
//
// An [Exchange] carries identity, a closed [Pattern], a [Status] that moves
// from Active to a terminal state, and the [Message] being transferred.
// Exchanges are created by [New] on the originating side and mutated in place
// until they are Done, failed with an Error, or answered with a fault.
//
// # Roles
//
// The same exchange is seen from two sides. The [Originator] sends it and later
// hears back about it; the [Responder] processes it and completes it. Routers
// flip the role on every hop, so a component can tell a new request
// (Responder) from a completion callback (Originator) by role alone.
//
// # Part metadata
//
// Child exchanges produced by a splitter carry [PartMeta] in their message
// properties: the number of parts, the part index and the correlation id of
// the original exchange.
//
// # Persistence
//
// [Codec] encodes an exchange as a structured CloudEvents JSON event so it can
// be stored in a durable correlation store and restored after a restart.
package exchange
