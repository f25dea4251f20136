package extracttest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"unicode/utf16"
)

const (
	cfbSector     = 512
	cfbMiniCutoff = 4096
	cfbFree       = 0xFFFFFFFF
	cfbEndChain   = 0xFFFFFFFE
	cfbFATSector  = 0xFFFFFFFD
	cfbNoStream   = 0xFFFFFFFF
)

// CFB returns a version 3 compound file whose root storage holds the given
// streams. Streams are zero-padded to the mini stream cutoff so that every
// one of them lives in regular sectors.
func CFB(streams map[string][]byte) []byte {
	names := make([]string, 0, len(streams))
	for n := range streams {
		names = append(names, n)
	}
	sort.Strings(names)

	// sector 0 is the FAT, sector 1 the directory, stream data follows
	type stream struct {
		name  string
		data  []byte
		start uint32
		size  uint32
	}
	var (
		list []stream
		next uint32 = 2
	)
	for _, n := range names {
		data := append([]byte(nil), streams[n]...)
		if len(data) < cfbMiniCutoff {
			data = append(data, make([]byte, cfbMiniCutoff-len(data))...)
		}
		size := uint32(len(data))
		if rem := len(data) % cfbSector; rem != 0 {
			data = append(data, make([]byte, cfbSector-rem)...)
		}
		list = append(list, stream{name: n, data: data, start: next, size: size})
		next += uint32(len(data) / cfbSector)
	}
	if next > cfbSector/4 {
		panic("extracttest: CFB fixture too large for a single FAT sector")
	}
	if len(list) > 3 {
		panic("extracttest: CFB fixture supports at most three streams")
	}

	fat := make([]uint32, cfbSector/4)
	for i := range fat {
		fat[i] = cfbFree
	}
	fat[0] = cfbFATSector
	fat[1] = cfbEndChain
	for _, s := range list {
		n := uint32(len(s.data) / cfbSector)
		for i := uint32(0); i < n; i++ {
			if i == n-1 {
				fat[s.start+i] = cfbEndChain
			} else {
				fat[s.start+i] = s.start + i + 1
			}
		}
	}

	var buf bytes.Buffer
	le := binary.LittleEndian

	header := make([]byte, cfbSector)
	copy(header, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(header[24:], 0x003E)
	le.PutUint16(header[26:], 0x0003)
	le.PutUint16(header[28:], 0xFFFE)
	le.PutUint16(header[30:], 9)
	le.PutUint16(header[32:], 6)
	le.PutUint32(header[44:], 1)
	le.PutUint32(header[48:], 1)
	le.PutUint32(header[56:], cfbMiniCutoff)
	le.PutUint32(header[60:], cfbEndChain)
	le.PutUint32(header[68:], cfbEndChain)
	le.PutUint32(header[76:], 0)
	for i := 1; i < 109; i++ {
		le.PutUint32(header[76+4*i:], cfbFree)
	}
	buf.Write(header)

	fatSector := make([]byte, cfbSector)
	for i, v := range fat {
		le.PutUint32(fatSector[4*i:], v)
	}
	buf.Write(fatSector)

	dir := make([]byte, cfbSector)
	// root entry: child is the first stream, streams chain as right siblings
	child := uint32(cfbNoStream)
	if len(list) > 0 {
		child = 1
	}
	putDirEntry(dir[0:128], "Root Entry", 5, cfbNoStream, cfbNoStream, child, cfbEndChain, 0)
	for i, s := range list {
		right := uint32(cfbNoStream)
		if i+1 < len(list) {
			right = uint32(i + 2)
		}
		off := 128 * (i + 1)
		putDirEntry(dir[off:off+128], s.name, 2, cfbNoStream, right, cfbNoStream, s.start, s.size)
	}
	for i := len(list) + 1; i < 4; i++ {
		off := 128 * i
		putDirEntry(dir[off:off+128], "", 0, cfbNoStream, cfbNoStream, cfbNoStream, 0, 0)
	}
	buf.Write(dir)

	for _, s := range list {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

func putDirEntry(b []byte, name string, typ byte, left, right, child, start, size uint32) {
	le := binary.LittleEndian
	if name != "" {
		units := utf16.Encode([]rune(name))
		for i, u := range units {
			le.PutUint16(b[2*i:], u)
		}
		le.PutUint16(b[64:], uint16(2*(len(units)+1)))
	}
	b[66] = typ
	b[67] = 1
	le.PutUint32(b[68:], left)
	le.PutUint32(b[72:], right)
	le.PutUint32(b[76:], child)
	le.PutUint32(b[116:], start)
	le.PutUint32(b[120:], size)
}

// UTF16LE encodes s as little-endian UTF-16 without a BOM.
func UTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}
