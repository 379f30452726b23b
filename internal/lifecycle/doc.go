// Package lifecycle implements the alarm lifecycle controller.
//
// The Controller moves between Idle and Counting. A trigger arms the step
// detection engine exactly once per session; duplicate triggers are ignored
// so accumulated steps are never lost. The session ends either when the
// running count reaches the target, which emits a single TargetReached
// notification, or on an external stop, which emits Stopped. The Ringing
// phase belongs to the audio and UI layer that consumes those notifications.
package lifecycle
