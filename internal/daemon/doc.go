// Package daemon wires the orchestrator into presentd. It owns the in-memory
// state tracker and timeout manager, fans state changes out to the journal,
// metrics and bus signals, keeps the registry of bus-created presentations
// and reloads the window set when the configuration file changes.
package daemon
