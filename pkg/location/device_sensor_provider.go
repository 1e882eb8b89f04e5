package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// maxSentencesPerRead bounds how many NMEA lines are inspected for a single GetLocation call.
const maxSentencesPerRead = 64

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port        string        // Serial port to which the GPS device is connected
	baudRate    int           // Baud rate for the serial communication
	readTimeout time.Duration // Read timeout applied to the serial port

	// open is swapped in tests to feed canned NMEA output.
	open func() (io.ReadCloser, error)

	mu      sync.Mutex
	conn    io.ReadCloser
	scanner *bufio.Scanner
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int, readTimeout time.Duration) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:        port,
		baudRate:    baudRate,
		readTimeout: readTimeout,
	}
	d.open = d.openSerial
	return d
}

func (d *DeviceSensorProvider) openSerial() (io.ReadCloser, error) {
	c := &serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: d.readTimeout}
	return serial.OpenPort(c)
}

// GetLocation reads NMEA sentences from the device until a GGA or RMC sentence yields a position.
// The port is opened on first use and kept open until Close.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Fix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, err := d.open()
		if err != nil {
			return Fix{}, fmt.Errorf("open gps device %s: %w", d.port, err)
		}
		d.conn = conn
		d.scanner = bufio.NewScanner(conn)
	}

	for i := 0; i < maxSentencesPerRead; i++ {
		if err := ctx.Err(); err != nil {
			return Fix{}, err
		}
		if !d.scanner.Scan() {
			err := d.scanner.Err()
			// Drop the connection so the next call reopens the port.
			d.closeLocked()
			if err == nil {
				err = io.EOF
			}
			return Fix{}, fmt.Errorf("read gps device %s: %w", d.port, err)
		}

		fix, ok, err := parseSentence(d.scanner.Text())
		if err != nil {
			return Fix{}, err
		}
		if ok {
			return fix, nil
		}
	}

	return Fix{}, ErrLocationUnavailable
}

// Close releases the serial port. It is safe to call on a provider that was never read.
func (d *DeviceSensorProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *DeviceSensorProvider) closeLocked() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	d.scanner = nil
	return err
}

// parseSentence extracts a fix from a GGA or RMC sentence of any talker.
// Other sentence types are skipped (ok == false, err == nil).
// A sentence reporting no fix yields ErrLocationUnavailable.
func parseSentence(line string) (Fix, bool, error) {
	line = strings.TrimSpace(line)
	if len(line) < 6 || line[0] != '$' {
		return Fix{}, false, nil
	}
	switch line[3:6] {
	case nmea.TypeGGA, nmea.TypeRMC:
	default:
		return Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, fmt.Errorf("parse nmea sentence: %w", err)
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return Fix{}, false, ErrLocationUnavailable
		}
		return Fix{
			Coordinate: Coordinate{Latitude: s.Latitude, Longitude: s.Longitude},
			Accuracy:   s.HDOP, // HDOP as a proxy for accuracy
		}, true, nil
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return Fix{}, false, ErrLocationUnavailable
		}
		return Fix{
			Coordinate: Coordinate{Latitude: s.Latitude, Longitude: s.Longitude},
		}, true, nil
	}

	return Fix{}, false, errors.New("unexpected nmea sentence type")
}
