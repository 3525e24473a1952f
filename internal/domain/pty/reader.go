package pty

// utf8Splitter re-chunks a byte stream on UTF-8 boundaries. Reads from a PTY
// master can tear a multi-byte rune across two chunks; the splitter holds
// back an incomplete trailing sequence until its continuation bytes arrive.
// Definitively invalid bytes are passed through rather than retained, so the
// splitter never stalls on binary output.
type utf8Splitter struct {
	pending []byte
}

// push appends data and returns the longest prefix that does not end in an
// incomplete UTF-8 sequence. The returned slice is freshly allocated.
func (s *utf8Splitter) push(data []byte) []byte {
	b := append(s.pending, data...)
	keep := incompleteTail(b)
	out := b[:len(b)-keep]
	s.pending = append([]byte(nil), b[len(b)-keep:]...)
	if len(out) == 0 {
		return nil
	}
	return append([]byte(nil), out...)
}

// flush returns whatever is still held back. Called at stream end: a rune
// that never completed is emitted raw rather than dropped.
func (s *utf8Splitter) flush() []byte {
	out := s.pending
	s.pending = nil
	return out
}

// incompleteTail returns how many trailing bytes of b form the start of a
// UTF-8 sequence whose continuation bytes have not arrived yet. Complete
// and invalid tails return 0.
func incompleteTail(b []byte) int {
	n := len(b)
	// A sequence is at most 4 bytes, so only the last 3 can be incomplete.
	for i := 1; i <= 3 && i <= n; i++ {
		c := b[n-i]
		if c < 0x80 {
			return 0 // ASCII terminates the scan: tail is complete
		}
		if c >= 0xC0 {
			var want int
			switch {
			case c < 0xE0:
				want = 2
			case c < 0xF0:
				want = 3
			case c < 0xF8:
				want = 4
			default:
				return 0 // invalid leader, let it through
			}
			if want > i {
				return i
			}
			return 0 // sequence complete (or overlong, decoder's problem)
		}
		// continuation byte, keep scanning left for its leader
	}
	return 0 // three continuation bytes with no leader: invalid, let through
}
