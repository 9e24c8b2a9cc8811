// Package wire frames a cache snapshot as a single byte slice.
//
//	magic(4)="SWRS" | ver(1) | n(u32 be)
//	( klen(u32 be) | key(klen) | vlen(u32 be) | payload(vlen) ) * n
//
// Keys are canonical key strings; payloads are codec output. Decoding is
// strict: bad magic, unknown versions, short buffers and trailing bytes all
// yield ErrCorrupt.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 4
)

var (
	ErrCorrupt  = errors.New("swrcache: corrupt snapshot")
	ErrTooLarge = errors.New("swrcache: snapshot item too large")

	magic = [...]byte{'S', 'W', 'R', 'S'}
)

type Item struct {
	Key     string
	Payload []byte
}

func Encode(items []Item) ([]byte, error) {
	total := hdrLen
	for _, it := range items {
		if uint64(len(it.Key)) > math.MaxUint32 || uint64(len(it.Payload)) > math.MaxUint32 {
			return nil, ErrTooLarge
		}
		total += 4 + len(it.Key) + 4 + len(it.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)
	buf.Write(magic[:])
	buf.WriteByte(version)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		binary.BigEndian.PutUint32(u4[:], uint32(len(it.Key)))
		buf.Write(u4[:])
		buf.WriteString(it.Key)

		binary.BigEndian.PutUint32(u4[:], uint32(len(it.Payload)))
		buf.Write(u4[:])
		buf.Write(it.Payload)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot. Payloads alias b.
func Decode(b []byte) ([]Item, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic[:]) || b[4] != version {
		return nil, ErrCorrupt
	}
	off := 5
	n := int(binary.BigEndian.Uint32(b[off:]))
	off += 4

	// every item needs at least two length prefixes
	if n > (len(b)-off)/8 {
		return nil, ErrCorrupt
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		key, next, ok := chunk(b, off)
		if !ok {
			return nil, ErrCorrupt
		}
		payload, next, ok := chunk(b, next)
		if !ok {
			return nil, ErrCorrupt
		}
		off = next
		items = append(items, Item{Key: string(key), Payload: payload})
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}

// chunk reads one u32-length-prefixed slice starting at off.
func chunk(b []byte, off int) ([]byte, int, bool) {
	if off+4 > len(b) {
		return nil, 0, false
	}
	l := int(binary.BigEndian.Uint32(b[off:]))
	off += 4
	if l < 0 || l > len(b)-off {
		return nil, 0, false
	}
	return b[off : off+l : off+l], off + l, true
}
