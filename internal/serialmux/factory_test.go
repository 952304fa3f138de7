package serialmux

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/banshee-data/edfreplay/internal/fsutil"
)

func TestRealPortFactory_Open_InvalidPath(t *testing.T) {
	// We can't open a real serial port in a unit test, but a missing device
	// must surface as an error rather than a nil port.
	port, err := NewRealPortFactory().Open("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		port.Close()
		t.Fatal("Expected error when opening non-existent serial port")
	}
}

func TestRealPortFactory_Open_InvalidOptions(t *testing.T) {
	_, err := NewRealPortFactory().Open("/dev/null", PortOptions{Parity: "X"})
	if err == nil {
		t.Fatal("Expected error for invalid parity")
	}
}

func TestFilePortFactory_CapturesWrites(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	port, err := FilePortFactory{FS: mfs}.Open("/capture.bin", PortOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := port.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := port.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := port.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	if _, err := port.Write([]byte{0x04}); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write after Close: expected ErrPortClosed, got %v", err)
	}

	f, err := mfs.Open("/capture.bin")
	if err != nil {
		t.Fatalf("capture file missing: %v", err)
	}
	data, _ := io.ReadAll(f)
	if string(data) != "\x01\x02\x03" {
		t.Errorf("captured %x, want 010203", data)
	}
}

func TestFilePort_ReadBlocksUntilClose(t *testing.T) {
	port, err := FilePortFactory{FS: fsutil.NewMemoryFileSystem()}.Open("/capture.bin", PortOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 1))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Read returned before Close: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	port.Close()
	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("Read after Close: expected io.EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Close")
	}
}

func TestMockSerialPortFactory(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)

	tr, err := Open(factory, "/dev/ttyACM0", PortOptions{BaudRate: 57600})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer tr.Close()

	call := factory.LastCall()
	if call == nil {
		t.Fatal("expected a recorded Open call")
	}
	if call.Path != "/dev/ttyACM0" {
		t.Errorf("Path = %q, want /dev/ttyACM0", call.Path)
	}
	// Options reach the factory already normalized.
	want := PortOptions{BaudRate: 57600, DataBits: 8, StopBits: 1, Parity: "N"}
	if call.Opts != want {
		t.Errorf("Opts = %+v, want %+v", call.Opts, want)
	}

	factory.Error = errors.New("device busy")
	if _, err := Open(factory, "/dev/ttyACM0", PortOptions{}); err == nil {
		t.Error("expected factory error to propagate")
	}
	if _, err := Open(factory, "/dev/ttyACM0", PortOptions{StopBits: 5}); err == nil {
		t.Error("expected invalid options to be rejected before opening")
	}
	if len(factory.OpenCalls) != 2 {
		t.Errorf("OpenCalls = %d, want 2", len(factory.OpenCalls))
	}
}
