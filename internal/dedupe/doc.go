// Package dedupe remembers recently seen keys for a bounded time window.
//
// The session uses it to remember correlation ids whose callers gave up
// waiting, so a response that arrives afterwards is recognised as late and
// dropped instead of being mistaken for an unsolicited update.
//
// Entries expire after the TTL and the oldest entry is evicted when the cache
// is full. Expiry is lazy: expired entries are pruned on writes, so the cache
// owns no goroutines and needs no Close.
package dedupe
