package transfer

// CalculateTotalChunks returns how many loop iterations a payload of size
// bytes takes at the given chunk size.
func CalculateTotalChunks(size uint64, chunkSize int) uint64 {
	if chunkSize <= 0 {
		return 0
	}
	c := uint64(chunkSize)
	return size/c + min(size%c, 1)
}
