// Package vlq decodes the Base64 variable-length quantities used by the
// "mappings" field of a version 3 source map.
//
// A mappings string is a sequence of groups separated by ';', one group per
// generated line. Each group is a comma-separated list of segments, and each
// segment is a run of VLQ fields:
//
//	generated column [, source index, original line, original column [, name index]]
//
// Every field is relative to the same field of the previous segment.
// Accumulating the deltas is the caller's job; this package only turns text
// into signed integers.
package vlq

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a segment is not a valid VLQ sequence.
var ErrMalformed = errors.New("malformed VLQ segment")

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	continuationBit = 0x20
	valueMask       = 0x1f
	shift           = 5
)

var decodeTable [256]byte

func init() {
	for i := range decodeTable {
		decodeTable[i] = 0xff
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = byte(i)
	}
}

// DecodeSegment decodes a single segment (no ',' or ';' separators) into its
// signed fields. Valid segments carry 1, 4 or 5 fields.
func DecodeSegment(segment string) ([]int, error) {
	fields := make([]int, 0, 5)
	magnitude, bits := 0, uint(0)
	open := false
	for i := 0; i < len(segment); i++ {
		digit := decodeTable[segment[i]]
		if digit == 0xff {
			return nil, fmt.Errorf("%w: invalid character %q at offset %d in %q", ErrMalformed, segment[i], i, segment)
		}
		magnitude += int(digit&valueMask) << bits
		if digit&continuationBit != 0 {
			bits += shift
			open = true
			continue
		}

		value := magnitude >> 1
		if magnitude&1 != 0 {
			value = -value
		}
		fields = append(fields, value)
		magnitude, bits, open = 0, 0, false
	}
	if open {
		return nil, fmt.Errorf("%w: %q ends inside a continued field", ErrMalformed, segment)
	}

	switch len(fields) {
	case 1, 4, 5:
		return fields, nil
	default:
		return nil, fmt.Errorf("%w: %q has %d fields, want 1, 4 or 5", ErrMalformed, segment, len(fields))
	}
}

// DecodeLine decodes all segments of one generated line, in order. An empty
// group decodes to an empty list.
func DecodeLine(group string) ([][]int, error) {
	if group == "" {
		return [][]int{}, nil
	}
	segments := strings.Split(group, ",")
	result := make([][]int, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			// Tolerate ",," and trailing commas emitted by some encoders.
			continue
		}
		fields, err := DecodeSegment(segment)
		if err != nil {
			return nil, err
		}
		result = append(result, fields)
	}
	return result, nil
}
