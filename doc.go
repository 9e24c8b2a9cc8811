// Package swrcache implements an asynchronous, reference-counted cache engine
// with stale-while-revalidate semantics and pluggable strategies.
//
// Components:
//   - Cache[K, V]: one named resource backed by a Fetcher. Concurrent Gets for
//     the same key share a single in-flight fetch.
//   - Strategy / Hooks / API: policy modules (see package strategy) observe
//     lifecycle events and act through a narrow API. They never start fetches.
//   - Group[K, V]: several caches, one per operation, sharing options.
//   - Registry: unique names and a list of live caches.
//
// Keys may be any value. Structurally equal keys (same fields, same map
// contents in any order) address the same entry. Options.Stringify replaces
// the canonical form when some fields should not affect identity.
//
// Access pattern:
//
//	ref, err := users.Get(userID)       // RefCount++
//	if err != nil { ... }               // only after Dispose
//	defer ref.Unref()                   // RefCount--
//	u, err := ref.Await(ctx)            // fetcher result, or the last good value
//
// Staleness is lazy: Stale marks an entry and the next Get revalidates it in
// the background while still serving the previous value. An entry whose last
// fetch failed is revalidated in the foreground instead.
//
// Server-side snapshots:
//
//	snap := users.Extract()             // canonical key -> value
//	// ship snap, then on the other side:
//	strategy.Hydrate[string, User](strategy.HydrateOptions[string, User]{
//	    Source: func() map[string]User { return snap },
//	})
package swrcache
