// Package dbus exposes the presentation orchestrator on the session bus as
// io.github.jmylchreest.presentd.Orchestrator1. It provides the server used
// by presentd, a client used by presentctl and a monitor for the
// presentation signals.
package dbus
