package location

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaMunich    = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix     = "$GPGGA,123520,,,,,0,00,,,M,,M,,*61"
	ggaMultiGNSS = "$GNGGA,090000,3723.2475,N,12158.3416,W,1,07,1.2,10.0,M,-25.0,M,,*56"
	rmcMunich    = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	gsvLine      = "$GPGSV,1,1,01,01,40,083,46*44"
)

type nopCloser struct {
	io.Reader
	closed int
}

func (n *nopCloser) Close() error {
	n.closed++
	return nil
}

func TestParseSentence_GGA(t *testing.T) {
	fix, ok, err := parseSentence(ggaMunich)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 48.1173, fix.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, fix.Longitude, 1e-6)
	assert.InDelta(t, 0.9, fix.Accuracy, 1e-9)
}

func TestParseSentence_GNGGA(t *testing.T) {
	fix, ok, err := parseSentence(ggaMultiGNSS)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 37.387458, fix.Latitude, 1e-5)
	assert.InDelta(t, -121.97236, fix.Longitude, 1e-5)
}

func TestParseSentence_RMC(t *testing.T) {
	fix, ok, err := parseSentence(rmcMunich)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-6)
}

func TestParseSentence_NoFix(t *testing.T) {
	_, ok, err := parseSentence(ggaNoFix)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestParseSentence_SkipsOtherSentences(t *testing.T) {
	for _, line := range []string{gsvLine, "", "garbage", "$GP"} {
		_, ok, err := parseSentence(line)
		assert.NoError(t, err, line)
		assert.False(t, ok, line)
	}
}

func TestParseSentence_BadChecksum(t *testing.T) {
	_, ok, err := parseSentence("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00")
	assert.False(t, ok)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLocationUnavailable))
}

func newTestDeviceProvider(output string) (*DeviceSensorProvider, *int) {
	opens := 0
	d := NewDeviceSensorProvider("/dev/ttyTEST", 9600, time.Second)
	d.open = func() (io.ReadCloser, error) {
		opens++
		return &nopCloser{Reader: strings.NewReader(output)}, nil
	}
	return d, &opens
}

func TestDeviceSensorProvider_GetLocation(t *testing.T) {
	d, opens := newTestDeviceProvider(strings.Join([]string{gsvLine, ggaMunich, ggaMultiGNSS}, "\r\n"))

	fix, err := d.GetLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.1173, fix.Latitude, 1e-6)

	// The port stays open and the next sentence is consumed.
	fix, err = d.GetLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 37.387458, fix.Latitude, 1e-5)
	assert.Equal(t, 1, *opens)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestDeviceSensorProvider_EOFReopens(t *testing.T) {
	d, opens := newTestDeviceProvider(gsvLine + "\n")

	_, err := d.GetLocation(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)

	_, err = d.GetLocation(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, *opens)
}

func TestDeviceSensorProvider_OpenError(t *testing.T) {
	d := NewDeviceSensorProvider("/dev/ttyTEST", 9600, time.Second)
	d.open = func() (io.ReadCloser, error) {
		return nil, errors.New("no such device")
	}

	_, err := d.GetLocation(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/ttyTEST")
}

func TestDeviceSensorProvider_CancelledContext(t *testing.T) {
	d, _ := newTestDeviceProvider(ggaMunich + "\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.GetLocation(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
