// Package wire provides the framed binary protocol spoken by the
// stimulation boards.
package wire

// Every message, in both directions, is a 4-byte header followed by a
// body:
//
//	[sync, address, type, length] [data ... (length bytes)] [checksum]
//
// The checksum covers the header and the data. Replies use the same
// sync/address pair as the commands they acknowledge and echo the
// command type, so one classification table serves both directions.
//
// The package does no I/O. Parser assembles frames from a byte stream
// and Inspect classifies and validates them; the stimulator core and the
// frame monitor share both.
