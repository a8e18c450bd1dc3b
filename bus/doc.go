// Package bus is an in-process delivery channel between named endpoints.
//
// Requests travel from the originator to the endpoint named by
// Exchange.Endpoint. Replies travel back to a waiting SendSync call or to
// the endpoint named by Exchange.Source. The role of an exchange is flipped
// on every hop, so an endpoint can tell a new request (Responder) from the
// completion of a request it sent earlier (Originator).
//
// Deliveries run on a bounded worker pool. A synchronous send issued from
// inside an endpoint holds its worker until the reply arrives; size
// Concurrency for the nesting depth of synchronous sends.
package bus
