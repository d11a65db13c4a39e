// Package protocol implements the binary wire format of the chat server:
// typed packet arguments, the packet catalog, and frame I/O.
//
// Every packet on the wire is framed as
//
//	[u16 type][u16 length][payload]
//
// all big-endian. The payload is a sequence of typed arguments described by
// a one-character-per-argument schema string:
//
//	I  unsigned 32-bit integer
//	S  16-bit length prefix + UTF-8 bytes
//	G  5-byte "big id": 1 byte high + 4 bytes low, (high<<32)|low
//	i  16-bit count prefix + that many 32-bit integers
//	s  16-bit count prefix + that many S-style strings
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrUnknownType = errors.New("protocol: unknown argument type")
	ErrMissingArg  = errors.New("protocol: missing argument")
	ErrShortBuffer = errors.New("protocol: buffer too short")
	ErrBadArg      = errors.New("protocol: argument has wrong type")
)

// FrameHeaderSize is the fixed per-packet header: u16 type + u16 length.
const FrameHeaderSize = 4

// DecodeArgs decodes a payload into one typed value per schema character.
// Values are returned as uint32 (I), string (S), uint64 (G), []uint32 (i)
// or []string (s).
func DecodeArgs(schema string, data []byte) ([]any, error) {
	args := make([]any, 0, len(schema))
	for _, tag := range schema {
		switch tag {
		case 'I':
			if len(data) < 4 {
				return nil, fmt.Errorf("%w: I needs 4 bytes, have %d", ErrShortBuffer, len(data))
			}
			args = append(args, binary.BigEndian.Uint32(data))
			data = data[4:]
		case 'S':
			s, rest, err := decodeString(data)
			if err != nil {
				return nil, err
			}
			args = append(args, s)
			data = rest
		case 'G':
			if len(data) < 5 {
				return nil, fmt.Errorf("%w: G needs 5 bytes, have %d", ErrShortBuffer, len(data))
			}
			high := uint64(data[0])
			low := uint64(binary.BigEndian.Uint32(data[1:5]))
			args = append(args, high<<32|low)
			data = data[5:]
		case 'i':
			if len(data) < 2 {
				return nil, fmt.Errorf("%w: i count prefix", ErrShortBuffer)
			}
			n := int(binary.BigEndian.Uint16(data))
			data = data[2:]
			if len(data) < n*4 {
				return nil, fmt.Errorf("%w: i needs %d bytes, have %d", ErrShortBuffer, n*4, len(data))
			}
			ints := make([]uint32, n)
			for j := 0; j < n; j++ {
				ints[j] = binary.BigEndian.Uint32(data[j*4:])
			}
			args = append(args, ints)
			data = data[n*4:]
		case 's':
			if len(data) < 2 {
				return nil, fmt.Errorf("%w: s count prefix", ErrShortBuffer)
			}
			n := int(binary.BigEndian.Uint16(data))
			data = data[2:]
			strs := make([]string, n)
			for j := 0; j < n; j++ {
				s, rest, err := decodeString(data)
				if err != nil {
					return nil, err
				}
				strs[j] = s
				data = rest
			}
			args = append(args, strs)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(tag))
		}
	}
	return args, nil
}

// EncodeArgs encodes one value per schema character into a payload.
func EncodeArgs(schema string, args []any) ([]byte, error) {
	var out []byte
	for idx, tag := range schema {
		if idx >= len(args) {
			return nil, fmt.Errorf("%w: schema %q wants %d args, got %d", ErrMissingArg, schema, len(schema), len(args))
		}
		switch tag {
		case 'I':
			v, ok := toUint32(args[idx])
			if !ok {
				return nil, fmt.Errorf("%w: arg %d for I", ErrBadArg, idx)
			}
			out = binary.BigEndian.AppendUint32(out, v)
		case 'S':
			s, ok := args[idx].(string)
			if !ok {
				return nil, fmt.Errorf("%w: arg %d for S", ErrBadArg, idx)
			}
			out = appendString(out, s)
		case 'G':
			v, ok := toUint64(args[idx])
			if !ok {
				return nil, fmt.Errorf("%w: arg %d for G", ErrBadArg, idx)
			}
			out = append(out, byte(v>>32))
			out = binary.BigEndian.AppendUint32(out, uint32(v))
		case 'i':
			ints, ok := args[idx].([]uint32)
			if !ok {
				return nil, fmt.Errorf("%w: arg %d for i", ErrBadArg, idx)
			}
			out = binary.BigEndian.AppendUint16(out, uint16(len(ints)))
			for _, n := range ints {
				out = binary.BigEndian.AppendUint32(out, n)
			}
		case 's':
			strs, ok := args[idx].([]string)
			if !ok {
				return nil, fmt.Errorf("%w: arg %d for s", ErrBadArg, idx)
			}
			out = binary.BigEndian.AppendUint16(out, uint16(len(strs)))
			for _, s := range strs {
				out = appendString(out, s)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(tag))
		}
	}
	return out, nil
}

func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("%w: S length prefix", ErrShortBuffer)
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, fmt.Errorf("%w: S needs %d bytes, have %d", ErrShortBuffer, n, len(data))
	}
	return string(data[:n]), data[n:], nil
}

func appendString(out []byte, s string) []byte {
	out = binary.BigEndian.AppendUint16(out, uint16(len(s)))
	return append(out, s...)
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int:
		return uint32(n), true
	case uint64:
		return uint32(n), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case int:
		return uint64(n), true
	}
	return 0, false
}

// ReadFrame reads one framed packet: type id and raw payload.
func ReadFrame(r io.Reader) (uint16, []byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	id := binary.BigEndian.Uint16(hdr[0:2])
	n := binary.BigEndian.Uint16(hdr[2:4])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return id, payload, nil
}

// AppendFrame frames a payload with the 4-byte header.
func AppendFrame(id uint16, payload []byte) []byte {
	out := make([]byte, 0, FrameHeaderSize+len(payload))
	out = binary.BigEndian.AppendUint16(out, id)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)))
	return append(out, payload...)
}
