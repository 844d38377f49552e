// Package task defines the immutable description of one supervised job.
//
// A Task is produced by the config loader and consumed by the monitor and
// the process primitives. Two Tasks are equal when every field is equal;
// reload uses that equality to decide whether a running job has to be
// replaced.
//
// Output paths may contain the placeholders {.Id} and {.Time}, replaced at
// spawn time with the per-monitor child counter and the Unix time in seconds.
package task
