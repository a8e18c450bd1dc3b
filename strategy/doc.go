// Package strategy provides split strategies for the splitter.
//
// Every strategy is deterministic: the same content always yields the same
// parts in the same order.
package strategy
