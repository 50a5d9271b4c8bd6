package webarg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Decode-time errors. ErrMalformedArgument aborts the invocation before any
// dispatch; ErrMissingField and ErrFieldSize surface when a variant asks the
// decoded table for an entry it requires.
var (
	ErrMalformedArgument = errors.New("webarg: buffer shorter than argument header")
	ErrInvalidShimKind   = errors.New("webarg: shim kind outside the closed set")
	ErrMissingField      = errors.New("webarg: required entry missing from table")
	ErrFieldSize         = errors.New("webarg: entry payload has unexpected size")
)

// Header is the fixed argument header that precedes the TLV table.
type Header struct {
	TotalEntries uint16
	ShimKind     ShimKind
}

// InputTLVMap is the decoded argument table, keyed by entry type. Keys are
// unique by construction: a later entry with a repeated type overwrites the
// earlier payload.
type InputTLVMap map[InputTLVType][]byte

// Decode parses an argument buffer into its header and TLV table.
//
// A buffer shorter than the header fails with ErrMalformedArgument and a
// header carrying a shim kind outside the closed set fails with
// ErrInvalidShimKind; in both cases no table is produced. A buffer exactly
// the header size decodes to an empty table, which is a valid parameter-less
// invocation.
//
// The entry table tolerates truncation: if the buffer ends before an entry's
// fixed fields, or before its declared payload, decoding stops and returns
// the entries read so far. A version-mismatched or damaged table therefore
// degrades to a partial map rather than an error, and no entry ever holds
// bytes from outside the buffer.
func Decode(buf []byte) (Header, InputTLVMap, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedArgument, len(buf), HeaderSize)
	}

	hdr := Header{
		TotalEntries: binary.LittleEndian.Uint16(buf[0:2]),
		ShimKind:     ShimKind(binary.LittleEndian.Uint32(buf[4:8])),
	}

	if !hdr.ShimKind.Valid() {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrInvalidShimKind, uint32(hdr.ShimKind))
	}

	if len(buf) == HeaderSize {
		return hdr, InputTLVMap{}, nil
	}

	entries := make(InputTLVMap, hdr.TotalEntries)
	offset := HeaderSize

	for i := 0; i < int(hdr.TotalEntries); i++ {
		if len(buf) < offset+tlvHeaderSize {
			return hdr, entries, nil
		}

		entryType := InputTLVType(binary.LittleEndian.Uint16(buf[offset : offset+2]))
		dataSize := int(binary.LittleEndian.Uint16(buf[offset+2 : offset+4]))
		offset += tlvHeaderSize

		if len(buf) < offset+dataSize {
			return hdr, entries, nil
		}

		payload := make([]byte, dataSize)
		copy(payload, buf[offset:offset+dataSize])
		offset += dataSize

		entries[entryType] = payload
	}

	return hdr, entries, nil
}

// Has reports whether the table holds an entry of the given type.
func (m InputTLVMap) Has(t InputTLVType) bool {
	_, ok := m[t]
	return ok
}

// Raw returns the payload of the given entry type, or ErrMissingField.
func (m InputTLVMap) Raw(t InputTLVType) ([]byte, error) {
	data, ok := m[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, t)
	}
	return data, nil
}

// String returns the entry payload interpreted as a fixed-size buffer
// holding a zero-terminated string: the result stops at the first NUL byte,
// or spans the whole payload if none is present.
func (m InputTLVMap) String(t InputTLVType) (string, error) {
	data, err := m.Raw(t)
	if err != nil {
		return "", err
	}
	s := string(data)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s, nil
}

// Uint64 returns the entry payload interpreted as a little-endian u64.
func (m InputTLVMap) Uint64(t InputTLVType) (uint64, error) {
	data, err := m.Raw(t)
	if err != nil {
		return 0, err
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("%w: %s holds %d bytes, need 8", ErrFieldSize, t, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

// Uint32 returns the entry payload interpreted as a little-endian u32.
func (m InputTLVMap) Uint32(t InputTLVType) (uint32, error) {
	data, err := m.Raw(t)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: %s holds %d bytes, need 4", ErrFieldSize, t, len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// DocumentKind returns the document-kind entry as its enumerated type,
// rejecting values outside the closed set.
func (m InputTLVMap) DocumentKind() (DocumentKind, error) {
	v, err := m.Uint32(TLVDocumentKind)
	if err != nil {
		return 0, err
	}
	kind := DocumentKind(v)
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: document_kind %d outside the closed set", ErrFieldSize, v)
	}
	return kind, nil
}

// CommonArguments is the storage every applet receives before its own
// argument blob. LibraryVersion selects the applet version consulted by the
// completion path.
type CommonArguments struct {
	ArgumentsVersion uint32
	Size             uint32
	LibraryVersion   uint32
	ThemeColor       uint32
	PlayStartupSound bool
	SystemTick       uint64
}

// DecodeCommonArguments parses the fixed common-arguments layout. Unlike the
// TLV table there is no truncation tolerance: the storage has a fixed size
// and anything shorter is malformed.
func DecodeCommonArguments(buf []byte) (CommonArguments, error) {
	if len(buf) < CommonArgumentsSize {
		return CommonArguments{}, fmt.Errorf("%w: common arguments got %d bytes, need %d",
			ErrMalformedArgument, len(buf), CommonArgumentsSize)
	}

	return CommonArguments{
		ArgumentsVersion: binary.LittleEndian.Uint32(buf[0:4]),
		Size:             binary.LittleEndian.Uint32(buf[4:8]),
		LibraryVersion:   binary.LittleEndian.Uint32(buf[8:12]),
		ThemeColor:       binary.LittleEndian.Uint32(buf[12:16]),
		PlayStartupSound: buf[16] != 0,
		SystemTick:       binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}
