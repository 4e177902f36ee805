// Package metrics holds the Prometheus collectors for the session core.
//
// Collectors are registered on their own registry so tests and multiple
// sessions do not collide on the global one. A nil *Collectors is valid and
// records nothing.
package metrics
