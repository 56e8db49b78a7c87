package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version     byte = 1
	kindContent byte = 1
	kindPointer byte = 2
)

const maxTagLength = 0xFFFF

var (
	ErrCorrupt = errors.New("variantcache: corrupt entry")
	magic4     = [...]byte{'V', 'C', 'O', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Dep is a dependency tag together with the generation observed at write time.
type Dep struct {
	Tag string
	Gen uint64
}

// Entry is the decoded form of a stored output cache entry.
// Content and tags of a decoded entry alias the input buffer where possible.
type Entry struct {
	PointerTag string
	Deps       []Dep
	Content    []byte
}

// Pointer reports whether e marks a partitioned page rather than real content.
func (e Entry) Pointer() bool { return e.PointerTag != "" }

// Layout:
//
//	magic(4) | ver(1) | kind(1=content,2=pointer)
//	tagLen(u16 be) | pointerTag(tagLen)
//	n(u16 be) | [depLen(u16 be) | dep(depLen) | gen(u64 be)] * n
//	clen(u32 be) | content(clen)
func EncodeEntry(e Entry) ([]byte, error) {
	if len(e.PointerTag) > maxTagLength {
		return nil, fmt.Errorf("variantcache: pointer tag too long (%d)", len(e.PointerTag))
	}
	if len(e.Deps) > 0xFFFF {
		return nil, fmt.Errorf("variantcache: too many dependencies (%d)", len(e.Deps))
	}

	total := 4 + 1 + 1 + 2 + len(e.PointerTag) + 2 + 4 + len(e.Content)
	for _, d := range e.Deps {
		if l := len(d.Tag); l == 0 || l > maxTagLength {
			return nil, fmt.Errorf("variantcache: invalid dependency tag length %d", l)
		}
		total += 2 + len(d.Tag) + 8
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	if e.Pointer() {
		buf.WriteByte(kindPointer)
	} else {
		buf.WriteByte(kindContent)
	}

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.PointerTag)))
	buf.Write(u2[:])
	buf.WriteString(e.PointerTag)

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Deps)))
	buf.Write(u2[:])
	for _, d := range e.Deps {
		binary.BigEndian.PutUint16(u2[:], uint16(len(d.Tag)))
		buf.Write(u2[:])
		buf.WriteString(d.Tag)
		binary.BigEndian.PutUint64(u8[:], d.Gen)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Content)))
	buf.Write(u4[:])
	buf.Write(e.Content)
	return buf.Bytes(), nil
}

func DecodeEntry(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	kind := b[5]
	if kind != kindContent && kind != kindPointer {
		return Entry{}, ErrCorrupt
	}
	off := hdr

	// pointer tag
	tag, off, ok := readString(b, off)
	if !ok {
		return Entry{}, ErrCorrupt
	}
	if (kind == kindPointer) != (tag != "") {
		return Entry{}, ErrCorrupt
	}

	// deps
	if off+2 > len(b) {
		return Entry{}, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	var deps []Dep
	if n > 0 {
		deps = make([]Dep, 0, min(n, (len(b)-off)/11+1))
	}
	for i := 0; i < n; i++ {
		var dtag string
		dtag, off, ok = readString(b, off)
		if !ok || dtag == "" {
			return Entry{}, ErrCorrupt
		}
		if off+8 > len(b) {
			return Entry{}, ErrCorrupt
		}
		gen := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		deps = append(deps, Dep{Tag: dtag, Gen: gen})
	}

	// content
	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	clen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if clen < 0 || clen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	content := b[off : off+clen]
	off += clen
	if off != len(b) {
		return Entry{}, ErrCorrupt
	}

	return Entry{PointerTag: tag, Deps: deps, Content: content}, nil
}

func readString(b []byte, off int) (string, int, bool) {
	if off+2 > len(b) {
		return "", off, false
	}
	l := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if l > len(b)-off {
		return "", off, false
	}
	return string(b[off : off+l]), off + l, true
}
