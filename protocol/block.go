package protocol

import "errors"

var (
	ErrBlockShort  = errors.New("incomplete block")
	ErrBlockLength = errors.New("invalid block length")
	ErrBlockSync   = errors.New("missing sync byte")
	ErrBlockCRC    = errors.New("block CRC mismatch")
)

// EncodeBlock frames the bytes written by payload as one block. The payload
// must keep the block within BlockMax; EncodeBlock reports false otherwise
// and rolls the output back to where it started. Buffers that report their
// free space must have room for a full block.
func EncodeBlock(output OutputBuffer, seq uint8, payload func(OutputBuffer)) bool {
	if f, ok := output.(interface{ Free() int }); ok && f.Free() < BlockMax {
		return false
	}
	start := output.CurPosition()
	output.Output([]byte{0, BlockDest | (seq & BlockSeqMask)})
	payload(output)

	length := output.CurPosition() - start + BlockTrailer
	if length > BlockMax {
		rewind(output, start)
		return false
	}
	output.Update(start+BlockPositionLen, byte(length))

	crc := CRC16(output.DataSince(start))
	output.Output([]byte{byte(crc >> 8), byte(crc), BlockSync})
	return true
}

// rewind drops everything written since pos when the buffer supports it
func rewind(output OutputBuffer, pos int) {
	if r, ok := output.(interface{ Truncate(pos int) }); ok {
		r.Truncate(pos)
	}
}

// Truncate drops all bytes written after pos
func (s *ScratchOutput) Truncate(pos int) {
	if pos < s.pos {
		s.pos = pos
	}
}

// ParseBlock validates the block at the start of data. It returns the
// sequence number, the payload and the total number of bytes the block used.
func ParseBlock(data []byte) (seq uint8, payload []byte, n int, err error) {
	if len(data) < 1 {
		return 0, nil, 0, ErrBlockShort
	}
	length := int(data[BlockPositionLen])
	if length < BlockMin || length > BlockMax {
		return 0, nil, 0, ErrBlockLength
	}
	if len(data) < length {
		return 0, nil, 0, ErrBlockShort
	}
	if data[length-1] != BlockSync {
		return 0, nil, 0, ErrBlockSync
	}
	want := uint16(data[length-3])<<8 | uint16(data[length-2])
	if CRC16(data[:length-BlockTrailer]) != want {
		return 0, nil, 0, ErrBlockCRC
	}
	seq = data[BlockPositionSeq] & BlockSeqMask
	return seq, data[BlockHeader : length-BlockTrailer], length, nil
}
