// Package monitor implements the per-task supervision state machine.
//
// A Monitor owns three cohorts of children: running, stopping and finished.
// Start spawns the configured number of children, Stop sends each running
// child its stop signal and moves it to stopping, and Cycle polls both
// cohorts, force-kills stopping children past their stop delay, classifies
// every finished child and applies the restart policy.
//
// Monitors are not safe for concurrent use. The state registry serializes
// every call behind a single mutex shared by the event loop and the cycle
// worker.
package monitor
