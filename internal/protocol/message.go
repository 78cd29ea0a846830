package protocol

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformed     = errors.New("malformed metadata")
	ErrFrameTooLarge = errors.New("frame too large")
	ErrInvalidName   = errors.New("invalid file name")
)

// FileMetadata is sent once, ahead of the payload. Size is the exact number
// of payload bytes that follow it on the stream.
type FileMetadata struct {
	Name string
	Size uint64
}

func (m FileMetadata) Marshal() []byte {
	b := make([]byte, 0, len(m.Name)+16)
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, m.Name)
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Size)
	return b
}

// Unmarshal decodes protobuf wire data. Unknown fields are skipped.
func (m *FileMetadata) Unmarshal(b []byte) error {
	var (
		out     FileMetadata
		hasName bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("%w: name: %v", ErrMalformed, protowire.ParseError(n))
			}
			if !utf8.ValidString(s) {
				return fmt.Errorf("%w: name is not valid UTF-8", ErrMalformed)
			}
			out.Name = s
			hasName = true
			b = b[n:]
		case num == fieldSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: size: %v", ErrMalformed, protowire.ParseError(n))
			}
			out.Size = v
			b = b[n:]
		case num == fieldName || num == fieldSize:
			return fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !hasName {
		return fmt.Errorf("%w: missing name", ErrMalformed)
	}

	*m = out
	return nil
}

// Validate checks that Name is a single path component that is safe to join
// to a local directory.
func (m FileMetadata) Validate() error {
	return ValidateName(m.Name)
}

func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > MaxNameSize:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxNameSize)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidName, name)
	case filepath.Base(name) != name, filepath.IsAbs(name), filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q is not a base name", ErrInvalidName, name)
	}
	return nil
}
