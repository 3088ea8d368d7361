// Package protocol implements the framed wire format the firmware uses to ship
// scheduler trace events to a host. Blocks follow the Klipper layout: a length
// byte, a sequence byte, a VLQ payload, a CRC16 and a sync byte.
package protocol

// Version of the trace wire format
const Version = "1"

// Block layout constants
const (
	BlockMax     = 64 // Largest block including header and trailer
	BlockHeader  = 2  // Length + sequence
	BlockTrailer = 3  // CRC16 + sync
	BlockMin     = BlockHeader + BlockTrailer

	BlockPositionLen = 0
	BlockPositionSeq = 1

	BlockSync    = 0x7E
	BlockDest    = 0x10 // High nibble marker carried in every sequence byte
	BlockSeqMask = 0x0F

	// MessageMax is the size of a ScratchOutput; several blocks fit
	MessageMax = 512
)
