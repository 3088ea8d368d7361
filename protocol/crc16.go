package protocol

import "github.com/sigurn/crc16"

// Klipper's crc16_ccitt is the reflected CCITT polynomial with an all-ones
// seed and no final xor, catalogued as CRC-16/MCRF4XX
var crcTable = crc16.MakeTable(crc16.CRC16_MCRF4XX)

// CRC16 calculates the block checksum over header and payload
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
