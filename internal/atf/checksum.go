package atf

import "hash/crc32"

// Checksum computes the CRC32 (IEEE polynomial) of an events section, the
// same algorithm used to populate a footer's Checksum field. No reader in
// this repository verifies the footer checksum.
func Checksum(events []byte) uint32 {
	return crc32.ChecksumIEEE(events)
}
