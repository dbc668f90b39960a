// Package orchestrator decides which presentation owns each display window,
// which visibility state every presentation is in, and when presentations
// expire or yield to others.
//
// A Client owns one WindowManager per window reported by the state tracker.
// Each Client and WindowManager runs its own serialized task queue and only
// touches its state from tasks on that queue. Window managers never block on
// the client; the client may block on window managers. Cross-window
// preemption uses continuation passing: a window manager asks the client to
// prepare the foreground and gets its own queue re-entered once the other
// windows have been cleared or unfocused.
//
// Presentation observers and recorders are called from window manager
// queues. They must not call blocking Client or WindowManager methods.
package orchestrator
