// internal/cyclic/rt.go
package cyclic

const prefaultChunk = 1024

// prefaultStack grows the goroutine stack by about n bytes and touches it,
// so the first cycles do not pay for stack growth.
//
//go:noinline
func prefaultStack(n int) byte {
	var page [prefaultChunk]byte
	page[0] = byte(n)
	page[prefaultChunk-1] = byte(n >> 8)
	if n > prefaultChunk {
		return page[0] ^ page[prefaultChunk-1] ^ prefaultStack(n-prefaultChunk)
	}
	return page[0] ^ page[prefaultChunk-1]
}
