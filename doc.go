// Package anyddpg implements Deep Deterministic Policy
// Gradients for agents that train on several tasks at
// once, sharing a subset of network weights across the
// tasks while keeping task-specific output heads separate.
//
// An agent owns one replay memory per task and performs a
// single batched update across all tasks, padding every
// task's observations and actions out to the widest task.
// The shared weights can be exported, transferred into
// another agent, frozen for a number of epochs, and
// unfrozen on a schedule.
package anyddpg
