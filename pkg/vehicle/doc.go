// Package vehicle defines the data exchanged with the simulated car: camera
// frames, telemetry, expert actions and the control commands sent back.
//
// Telemetry and expert payloads are addressed through an explicit Mapping from
// logical fields to wire keys. A field without a mapping entry is an error.
package vehicle
