// Package client implements the trigger, stop and status CLI actions.
//
// Each action loads the settings, connects to the daemon and reports the
// result through the logger; status renders a one-line progress summary and
// can keep polling until the session ends.
package client
