// Package trigger implements the per-entity trigger state machine.
//
// A machine has two states: idle (switch off, no timer) and activated
// (switch on, reset timer running). Activation flips the switch on, fires
// the remote action in the background, and schedules an unconditional
// return to off after a fixed delay. The remote outcome and the reset are
// deliberately independent: the switch behaves like a momentary button, and
// failures surface only in the logs.
package trigger
