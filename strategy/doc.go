// Package strategy contains the built-in cache policies: LRU size capping,
// snapshot hydration, staleness rules and eviction rules. Every policy is
// written purely against swrcache.API and swrcache.Hooks.
//
// Strategies compose in registration order, and a later strategy sees what an
// earlier one did for the same event. Put eviction policies after the ones that
// mark entries stale when both react to the same hook.
package strategy
