// Package dispatch implements the daily campaign dispatch run.
//
// A run selects the campaigns due on a given day, resolves each campaign's
// audience with the strategy registered for its trigger kind, and submits one
// newsletter message per recipient to the mail queue. Campaigns are handled
// strictly one after another, and so are the recipients of a campaign.
//
// The service depends only on the store and queue interfaces declared in
// repository.go. Postgres implementations live in repository/postgres/ and
// queue backends in queue/.
//
// Delivery is at-least-once: nothing records what was sent, so running the
// same day twice submits the same messages twice. Overlapping runs can be
// prevented with a RunLock.
package dispatch
