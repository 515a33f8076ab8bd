package station

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"chargeset/internal"
	"chargeset/internal/config"
)

// TokenHandler processes one identity token read from a device. The writer
// is the device itself, used to echo errors back to it.
type TokenHandler func(ctx context.Context, token string, device io.Writer)

// Scanner polls the platform serial port list, claims ports that look like
// token readers and spawns a reader session per claimed port. A session that
// ends releases its claim, so an unplugged and replugged reader is picked up
// again on a later scan.
type Scanner struct {
	registry *Registry
	handler  TokenHandler
	logger   internal.LogHandler

	baudRate int
	interval time.Duration

	// injectable for tests
	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(device string, baudRate int) (io.ReadWriteCloser, error)
}

func NewScanner(registry *Registry, handler TokenHandler, logger internal.LogHandler, conf *config.Config) *Scanner {
	return &Scanner{
		registry:  registry,
		handler:   handler,
		logger:    logger,
		baudRate:  conf.Station.BaudRate,
		interval:  time.Duration(conf.Station.ScanInterval) * time.Millisecond,
		listPorts: enumerator.GetDetailedPortsList,
		openPort: func(device string, baudRate int) (io.ReadWriteCloser, error) {
			return serial.Open(device, &serial.Mode{BaudRate: baudRate})
		},
	}
}

// Start blocks, rescanning until the context is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	ports, err := s.listPorts()
	if err != nil {
		s.logger.Error("list serial ports", err)
		return
	}
	for _, port := range ports {
		if !matchesReader(runtime.GOOS, port.Name, port.Product) {
			continue
		}
		if !s.registry.Add(port.Name) {
			continue
		}
		s.logger.Debug(fmt.Sprintf("reader detected on %s", port.Name))
		go s.serve(ctx, port.Name)
	}
}

// serve owns one claimed port until it disconnects or the context ends.
func (s *Scanner) serve(ctx context.Context, device string) {
	defer s.registry.Remove(device)

	port, err := s.openPort(device, s.baudRate)
	if err != nil {
		s.logger.Error(fmt.Sprintf("open %s", device), err)
		return
	}
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			_ = port.Close()
		case <-closed:
		}
	}()
	defer func() {
		_ = port.Close()
	}()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		s.logger.FeatureEvent("IdToken", device, fmt.Sprintf("token received: %s", token))
		go s.handler(ctx, token, port)
	}
	if err = scanner.Err(); err != nil {
		s.logger.Debug(fmt.Sprintf("reader %s disconnected: %v", device, err))
	} else {
		s.logger.Debug(fmt.Sprintf("reader %s closed", device))
	}
}

// matchesReader reports whether a serial port looks like a token reader on
// the given platform. USB serial bridges show up with adapter chip names in
// the product description on macOS and with well-known device prefixes on
// Linux.
func matchesReader(goos, device, description string) bool {
	dev := strings.ToLower(device)
	desc := strings.ToLower(description)
	switch goos {
	case "darwin":
		return strings.Contains(dev, "usbserial") || strings.Contains(dev, "usbmodem") ||
			strings.Contains(desc, "cp210") || strings.Contains(desc, "ch340")
	case "linux":
		return strings.Contains(dev, "ttyusb") || strings.Contains(dev, "ttyacm")
	default:
		return false
	}
}
