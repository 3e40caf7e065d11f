package util

// U16BE assembles a big-endian 16-bit value from two bytes.
func U16BE(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}

// PutU16BE splits a 16-bit value into its big-endian byte pair.
func PutU16BE(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}
