// Package contrib holds pieces that sit around the flat-plan core rather
// than inside it.
//
// Nothing here is covered by the compatibility guarantees of the core
// packages. Changes may break callers without a major version bump.
//
// [github.com/flatplan/flatplan.go/contrib/relayserver] is the collaboration
// relay that editors share magazines through, with in-memory and PostgreSQL
// share stores. [github.com/flatplan/flatplan.go/contrib/rews] wraps a relay
// connection so that subscriptions and presence survive reconnects, and
// [github.com/flatplan/flatplan.go/contrib/testenv] provides log capture for
// tests.
package contrib
