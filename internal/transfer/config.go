package transfer

import "time"

const DefaultChunkSize = 64 * 1024

type Config struct {
	// ChunkSize is the largest read or write issued per loop iteration.
	ChunkSize int
	// IOTimeout bounds each read and write on the connection. Zero disables it.
	IOTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize}
}
