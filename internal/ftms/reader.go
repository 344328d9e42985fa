package ftms

// Reader is a little-endian cursor over a notification payload. Every read
// checks bounds first and reports false instead of advancing past the end.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset returns the cursor position
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) has(n int) bool {
	return n >= 0 && r.Remaining() >= n
}

// Skip advances n bytes if they are all present
func (r *Reader) Skip(n int) bool {
	if !r.has(n) {
		return false
	}
	r.off += n
	return true
}

func (r *Reader) ReadU8() (uint8, bool) {
	if !r.has(1) {
		return 0, false
	}
	v := r.buf[r.off]
	r.off++
	return v, true
}

func (r *Reader) ReadU16() (uint16, bool) {
	if !r.has(2) {
		return 0, false
	}
	v := uint16(r.buf[r.off]) | uint16(r.buf[r.off+1])<<8
	r.off += 2
	return v, true
}

func (r *Reader) ReadS16() (int16, bool) {
	v, ok := r.ReadU16()
	return int16(v), ok
}

func (r *Reader) ReadU24() (uint32, bool) {
	if !r.has(3) {
		return 0, false
	}
	v := uint32(r.buf[r.off]) | uint32(r.buf[r.off+1])<<8 | uint32(r.buf[r.off+2])<<16
	r.off += 3
	return v, true
}
