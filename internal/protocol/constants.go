package protocol

import "google.golang.org/protobuf/encoding/protowire"

const (
	// FrameHeaderSize is the width of the big-endian length prefix.
	FrameHeaderSize = 4
	// MaxFrameSize bounds the serialized metadata a peer may announce.
	MaxFrameSize = 64 * 1024
	// MaxNameSize is the longest file name accepted on the wire.
	MaxNameSize = 255
)

// Field numbers of the FileMetadata message:
//
//	message FileMetadata {
//	  string name = 1;
//	  uint64 size = 2;
//	}
const (
	fieldName protowire.Number = 1
	fieldSize protowire.Number = 2
)
