// Package pilot runs the online imitation-learning control loop.
//
// A Loop owns one driving session. After synchronizing the transport it
// processes every inbound observation in order: the frame is downsampled, the
// memory window advances, the tuple is recorded and either the expert or the
// predictor drives the vehicle for that tick. Every N ticks the loop blocks in
// a retraining phase that fits the predictor on the experience recorded since
// the previous retrain. Whatever ends the session, the recorded history is
// flushed exactly once before the transport is closed.
//
// State machine:
//
//	HANDSHAKING -> RUNNING -> (RETRAINING <-> RUNNING)* -> SHUTTING_DOWN -> TERMINATED
//
// A failed handshake goes straight to TERMINATED without creating a session.
package pilot
