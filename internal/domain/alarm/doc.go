// Package alarm contains core domain types for the step-gated alarm.
//
// It defines the lifecycle State, the Actor that requested a transition and
// the Session record describing one armed alarm from trigger to its single
// outcome. Clone helpers avoid leaking internal references.
package alarm
