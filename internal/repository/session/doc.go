// Package session persists the history of finished alarm sessions.
//
// The FileRepository keeps a bounded list of sessions in a JSON file written
// through protojson, so the file layout matches what the gRPC status API
// returns for a session.
package session
