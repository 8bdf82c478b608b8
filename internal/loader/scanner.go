package loader

// fragmentScanner splits a byte stream into complete top-level JSON objects.
//
// It accepts a JSON array of objects as well as objects that are simply concatenated
// or newline separated: anything outside an object (brackets, commas, whitespace) is
// skipped. Quoted strings and their escapes are tracked so braces inside string values
// never change the depth. State carries across Feed calls, so chunk boundaries may fall
// anywhere, including inside an escape sequence.
type fragmentScanner struct {
	maxFragment int

	buf      []byte // head of the current object when it spans chunks
	depth    int
	inString bool
	escaped  bool
	skipping bool // current object exceeded maxFragment; its bytes are not kept

	oversized int
}

func newFragmentScanner(maxFragment int) *fragmentScanner {
	return &fragmentScanner{maxFragment: maxFragment}
}

// Feed scans chunk and calls emit for each complete object. The slice passed to emit
// is only valid during the call. Feed returns false as soon as emit does.
func (s *fragmentScanner) Feed(chunk []byte, emit func(fragment []byte) bool) bool {
	start := 0
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		if s.depth == 0 {
			if c == '{' {
				s.depth = 1
				s.buf = s.buf[:0]
				s.skipping = false
				start = i
			}
			continue
		}
		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			continue
		}
		switch c {
		case '"':
			s.inString = true
		case '{':
			s.depth++
		case '}':
			s.depth--
			if s.depth > 0 {
				continue
			}
			if s.skipping || len(s.buf)+(i+1-start) > s.maxFragment {
				s.oversized++
				s.skipping = false
				s.buf = s.buf[:0]
				continue
			}
			frag := chunk[start : i+1]
			if len(s.buf) > 0 {
				s.buf = append(s.buf, frag...)
				frag = s.buf
			}
			ok := emit(frag)
			s.buf = s.buf[:0]
			if !ok {
				return false
			}
		}
	}
	if s.depth > 0 && !s.skipping {
		if len(s.buf)+(len(chunk)-start) > s.maxFragment {
			s.skipping = true
			s.buf = s.buf[:0]
		} else {
			s.buf = append(s.buf, chunk[start:]...)
		}
	}
	return true
}

// Pending reports whether an object was opened but not closed.
func (s *fragmentScanner) Pending() bool {
	return s.depth > 0
}
