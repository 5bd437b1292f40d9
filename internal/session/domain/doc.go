// Package domain defines the entities and timeline state for focus sessions.
//
// A Session is a single 55-minute group focus period. Its timeline is a
// fixed sequence of phases (setup, work1, break, work2, social) bracketed
// by two boundary states: idle before the scheduled start and completed
// once the full duration has elapsed. PhaseAt derives the timeline
// position from nothing but two instants, so the same session can be
// replayed at any observation point.
//
// # Session Lifecycle
//
// Session records move through several statuses:
//   - Scheduled: created, waiting for the start instant.
//   - Live: the timeline is running.
//   - Completed: the timeline elapsed and awards were granted.
//   - Canceled: the host stopped the session before completion.
package domain
