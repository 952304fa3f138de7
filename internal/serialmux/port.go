package serialmux

import "io"

// SerialPorter is the byte link a Transport drives: a tty from
// go.bug.st/serial, a capture file, or an in-memory port in tests.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortFactory opens a SerialPorter for a path and line settings.
type SerialPortFactory interface {
	Open(path string, opts PortOptions) (SerialPorter, error)
}
