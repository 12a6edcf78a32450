// Package fes drives functional electrical stimulation boards.
//
// A Stimulator owns one or two boards, each reached through a Transport
// and owning one Scheduler. Schedulers hold one Event per Channel and
// keep the parameters acknowledged by the board in step with the ones
// requested locally, sending only the edits needed on every Update.
//
// The Stimulator fails safe: any invalid frame, missing acknowledgement
// or transport error during a tick disables every board. Nothing is
// retried; the operator re-enables explicitly.
//
// Except for Snapshot and IsEnabled, a Stimulator must be driven from a
// single goroutine.
package fes
