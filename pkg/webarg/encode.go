package webarg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrURLTooLong is returned when a last-URL exceeds the return value's
// fixed buffer. The encoder refuses rather than truncating the record.
var ErrURLTooLong = errors.New("webarg: last URL exceeds return value capacity")

// ReturnValue is the single record pushed back to the caller when the
// invocation completes.
type ReturnValue struct {
	ExitReason ExitReason
	LastURL    string
}

// Encode serializes the return value into its fixed wire layout.
func (v ReturnValue) Encode() ([]byte, error) {
	if len(v.LastURL) > LastURLCapacity {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrURLTooLong, len(v.LastURL), LastURLCapacity)
	}

	buf := make([]byte, ReturnValueSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.ExitReason))
	copy(buf[8:8+LastURLCapacity], v.LastURL)
	binary.LittleEndian.PutUint64(buf[8+LastURLCapacity:], uint64(len(v.LastURL)))
	return buf, nil
}

// DecodeReturnValue parses a serialized return value. Used by hosts reading
// the record back off the messaging boundary.
func DecodeReturnValue(buf []byte) (ReturnValue, error) {
	if len(buf) < ReturnValueSize {
		return ReturnValue{}, fmt.Errorf("%w: return value got %d bytes, need %d",
			ErrMalformedArgument, len(buf), ReturnValueSize)
	}

	size := binary.LittleEndian.Uint64(buf[8+LastURLCapacity:])
	if size > LastURLCapacity {
		size = LastURLCapacity
	}

	return ReturnValue{
		ExitReason: ExitReason(binary.LittleEndian.Uint32(buf[0:4])),
		LastURL:    string(buf[8 : 8+size]),
	}, nil
}

// Builder assembles argument blobs in wire order. It exists for the host
// side of the boundary: callers constructing invocations, the decode
// inspection command and tests.
type Builder struct {
	kind    ShimKind
	entries []builderEntry
}

type builderEntry struct {
	entryType InputTLVType
	payload   []byte
}

// NewBuilder starts an argument blob for the given shim kind.
func NewBuilder(kind ShimKind) *Builder {
	return &Builder{kind: kind}
}

// Raw appends an entry with an opaque payload.
func (b *Builder) Raw(t InputTLVType, payload []byte) *Builder {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.entries = append(b.entries, builderEntry{entryType: t, payload: cp})
	return b
}

// String appends a string entry. The guest convention is a fixed buffer
// with a zero terminator, so one NUL byte is appended to the payload.
func (b *Builder) String(t InputTLVType, s string) *Builder {
	payload := make([]byte, len(s)+1)
	copy(payload, s)
	return b.Raw(t, payload)
}

// Uint64 appends a little-endian u64 entry.
func (b *Builder) Uint64(t InputTLVType, v uint64) *Builder {
	var payload [8]byte
	binary.LittleEndian.PutUint64(payload[:], v)
	return b.Raw(t, payload[:])
}

// Uint32 appends a little-endian u32 entry.
func (b *Builder) Uint32(t InputTLVType, v uint32) *Builder {
	var payload [4]byte
	binary.LittleEndian.PutUint32(payload[:], v)
	return b.Raw(t, payload[:])
}

// DocumentKind appends a document-kind entry.
func (b *Builder) DocumentKind(kind DocumentKind) *Builder {
	return b.Uint32(TLVDocumentKind, uint32(kind))
}

// Build serializes the header and entries.
func (b *Builder) Build() []byte {
	size := HeaderSize
	for _, e := range b.entries {
		size += tlvHeaderSize + len(e.payload)
	}

	buf := make([]byte, 0, size)
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(len(b.entries)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(b.kind))
	buf = append(buf, hdr[:]...)

	for _, e := range b.entries {
		var th [tlvHeaderSize]byte
		binary.LittleEndian.PutUint16(th[0:2], uint16(e.entryType))
		binary.LittleEndian.PutUint16(th[2:4], uint16(len(e.payload)))
		buf = append(buf, th[:]...)
		buf = append(buf, e.payload...)
	}

	return buf
}

// EncodeCommonArguments serializes the common-arguments storage.
func EncodeCommonArguments(args CommonArguments) []byte {
	buf := make([]byte, CommonArgumentsSize)
	binary.LittleEndian.PutUint32(buf[0:4], args.ArgumentsVersion)
	binary.LittleEndian.PutUint32(buf[4:8], args.Size)
	binary.LittleEndian.PutUint32(buf[8:12], args.LibraryVersion)
	binary.LittleEndian.PutUint32(buf[12:16], args.ThemeColor)
	if args.PlayStartupSound {
		buf[16] = 1
	}
	binary.LittleEndian.PutUint64(buf[24:32], args.SystemTick)
	return buf
}
