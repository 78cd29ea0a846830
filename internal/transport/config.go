package transport

import "time"

const socketBufferSize = 4 * 1024 * 1024

type Config struct {
	// DialTimeout bounds the outbound connect. Zero waits for the OS.
	DialTimeout time.Duration
	// AcceptTimeout bounds how long a listener waits for its peer. Zero waits forever.
	AcceptTimeout time.Duration
	// SocketBuffer sets SO_RCVBUF and SO_SNDBUF on every connection. Zero keeps the OS default.
	SocketBuffer int
}

func DefaultConfig() Config {
	return Config{
		SocketBuffer: socketBufferSize,
	}
}
