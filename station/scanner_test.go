package station

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"

	"chargeset/internal/config"
)

func TestMatchesReader(t *testing.T) {
	tests := []struct {
		goos        string
		device      string
		description string
		want        bool
	}{
		{"darwin", "/dev/cu.usbserial-0001", "", true},
		{"darwin", "/dev/cu.usbmodem14101", "", true},
		{"darwin", "/dev/cu.Bluetooth-Incoming-Port", "CP2102N USB to UART Bridge", true},
		{"darwin", "/dev/cu.Bluetooth-Incoming-Port", "USB2.0-Serial CH340", true},
		{"darwin", "/dev/cu.Bluetooth-Incoming-Port", "", false},
		{"linux", "/dev/ttyUSB0", "", true},
		{"linux", "/dev/ttyACM2", "", true},
		{"linux", "/dev/ttyS0", "", false},
		{"windows", "COM3", "CP2102 USB to UART Bridge", false},
	}
	for _, tt := range tests {
		if got := matchesReader(tt.goos, tt.device, tt.description); got != tt.want {
			t.Errorf("matchesReader(%q, %q, %q) = %v, want %v", tt.goos, tt.device, tt.description, got, tt.want)
		}
	}
}

// fakePort feeds scripted lines and blocks until closed.
type fakePort struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mutex   sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newFakePort(lines string) *fakePort {
	r, w := io.Pipe()
	port := &fakePort{reader: r, writer: w}
	go func() {
		_, _ = w.Write([]byte(lines))
	}()
	return port
}

func (p *fakePort) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.closed {
		p.closed = true
		_ = p.writer.Close()
		_ = p.reader.Close()
	}
	return nil
}

func testConfig() *config.Config {
	conf := &config.Config{}
	conf.Station.Id = "ST-001"
	conf.Station.BaudRate = 115200
	conf.Station.ScanInterval = 10
	return conf
}

func devicePath() string {
	if runtime.GOOS == "darwin" {
		return "/dev/cu.usbserial-0001"
	}
	return "/dev/ttyUSB0"
}

func TestScannerClaimsAndReads(t *testing.T) {
	tokens := make(chan string, 4)
	registry := NewRegistry()
	handler := func(ctx context.Context, token string, device io.Writer) {
		tokens <- token
	}
	scanner := NewScanner(registry, handler, nopLogger(), testConfig())

	device := devicePath()
	port := newFakePort("tok-A\n\ntok-B\n")
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: device}}, nil
	}
	scanner.openPort = func(name string, baudRate int) (io.ReadWriteCloser, error) {
		if name != device {
			t.Errorf("opened %s, want %s", name, device)
		}
		if baudRate != 115200 {
			t.Errorf("baud rate %d, want 115200", baudRate)
		}
		return port, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scanner.Start(ctx)

	for _, want := range []string{"tok-A", "tok-B"} {
		select {
		case got := <-tokens:
			if got != want {
				t.Errorf("token = %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for token %q", want)
		}
	}
	if !registry.Has(device) {
		t.Error("device should stay claimed while the session is alive")
	}
}

func TestScannerReleasesOnDisconnect(t *testing.T) {
	registry := NewRegistry()
	scanner := NewScanner(registry, func(ctx context.Context, token string, device io.Writer) {}, nopLogger(), testConfig())

	device := devicePath()
	port := newFakePort("tok-A\n")
	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: device}}, nil
	}

	opens := make(chan struct{}, 8)
	firstOpen := true
	scanner.openPort = func(name string, baudRate int) (io.ReadWriteCloser, error) {
		opens <- struct{}{}
		if firstOpen {
			firstOpen = false
			return port, nil
		}
		// replacement port that stays quiet, keeping the claim alive
		return newFakePort(""), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scanner.Start(ctx)

	select {
	case <-opens:
	case <-time.After(2 * time.Second):
		t.Fatal("device was never opened")
	}

	// simulate unplugging the reader
	_ = port.Close()

	// the released device must be picked up again on a later scan
	select {
	case <-opens:
	case <-time.After(2 * time.Second):
		t.Fatal("device was not re-detected after disconnect")
	}
}

func TestScannerIgnoresUnmatchedPorts(t *testing.T) {
	registry := NewRegistry()
	scanner := NewScanner(registry, func(ctx context.Context, token string, device io.Writer) {}, nopLogger(), testConfig())

	scanner.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{{Name: "/dev/ttyS0"}}, nil
	}
	opened := false
	scanner.openPort = func(name string, baudRate int) (io.ReadWriteCloser, error) {
		opened = true
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scanner.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	if opened {
		t.Error("non-reader port must not be opened")
	}
	if registry.Count() != 0 {
		t.Errorf("registry count = %d, want 0", registry.Count())
	}
}
