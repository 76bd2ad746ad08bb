// Package wire implements the newline-delimited framing shared by both
// lanelink protocols: the TCP link to the lane-coordination server and the
// Unix-domain link to the ball sensor daemon.
//
// A frame is UTF-8 text terminated by a single '\n'. The payload is either
// a command token (LAST_BALL), a bracketed integer list (PIN_SET [1,2,3]),
// or a JSON document. The framing layer reassembles frames from partial
// reads and leaves message semantics to the clients.
package wire
