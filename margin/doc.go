// Package margin watches account equity and raises leveled alerts as the
// equity ratio deteriorates. A finite state machine with hysteresis bands
// keeps the alert level from thrashing when equity oscillates around a
// threshold, and a per-level rate limit keeps repeated transitions from
// flooding the dispatcher.
package margin
