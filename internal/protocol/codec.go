package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Codec frames FileMetadata as a big-endian uint32 length followed by the
// protobuf encoded message.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(w io.Writer, msg FileMetadata) error {
	return WriteFrame(w, msg.Marshal())
}

func (c *Codec) Decode(r io.Reader) (FileMetadata, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return FileMetadata{}, err
	}

	var msg FileMetadata
	if err := msg.Unmarshal(payload); err != nil {
		return FileMetadata{}, err
	}
	return msg, nil
}

func (c *Codec) EncodeToBytes(msg FileMetadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) DecodeFromBytes(data []byte) (FileMetadata, error) {
	return c.Decode(bytes.NewReader(data))
}

// WriteFrame writes the length prefix and payload with a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:FrameHeaderSize], uint32(len(payload)))
	copy(frame[FrameHeaderSize:], payload)

	_, err := w.Write(frame)
	return err
}

// ReadFrame reads exactly one frame. A stream that ends inside the frame
// yields io.ErrUnexpectedEOF; a stream that ends before it yields io.EOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: peer announced %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return payload, nil
}
