// Package agent tracks live agent connections and runs the per-connection
// session state machine.
//
// The Registry maps an agent id (the computer id in decimal form) to its
// channel and is the only answer to "is this agent reachable right now".
// Send never fails loudly: an absent or closed channel yields false and the
// caller decides what that means for the job.
//
// A Handler drives one Session per connection through
// Connecting -> Authenticated -> Closed. Close runs the offline transition
// exactly once, whatever ended the connection.
package agent
