package serialmux

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/edfreplay/internal/fsutil"
)

// RealPortFactory opens tty devices through go.bug.st/serial.
type RealPortFactory struct{}

// NewRealPortFactory returns a factory for hardware serial ports.
func NewRealPortFactory() RealPortFactory {
	return RealPortFactory{}
}

// Open opens the serial device at path using opts.
func (RealPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}

// FilePortFactory opens a plain file in place of a tty so the byte stream can
// be captured on a development machine. Port options are ignored.
type FilePortFactory struct {
	FS fsutil.FileSystem
}

// Open creates or truncates the file at path.
func (f FilePortFactory) Open(path string, _ PortOptions) (SerialPorter, error) {
	fsys := f.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	w, err := fsys.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file %s: %w", path, err)
	}
	return newFilePort(w), nil
}

// filePort never produces input. Reads block until Close and then report EOF.
type filePort struct {
	w        io.WriteCloser
	done     chan struct{}
	once     sync.Once
	closeErr error
}

func newFilePort(w io.WriteCloser) *filePort {
	return &filePort{w: w, done: make(chan struct{})}
}

func (p *filePort) Read([]byte) (int, error) {
	<-p.done
	return 0, io.EOF
}

func (p *filePort) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrPortClosed
	default:
	}
	return p.w.Write(b)
}

func (p *filePort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.closeErr = p.w.Close()
	})
	return p.closeErr
}
