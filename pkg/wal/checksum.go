package wal

import "hash/crc32"

// castagnoliTable is the CRC32C polynomial table (hardware-accelerated on
// modern CPUs via SSE4.2), same choice the teacher makes for its own WAL.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// ChecksumPayload computes the checksum stored in a Header.CRC32 field.
func ChecksumPayload(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// VerifyPayload reports whether data matches the expected checksum.
func VerifyPayload(data []byte, expected uint32) bool {
	return ChecksumPayload(data) == expected
}
