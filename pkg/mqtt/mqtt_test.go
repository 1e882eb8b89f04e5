package mqtt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/benmeehan/location-reporter/pkg/file"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSConfig_MissingCertificate(t *testing.T) {
	s := NewMqttService(file.NewFileService(), zerolog.Nop())

	_, err := s.tlsConfig(filepath.Join(t.TempDir(), "ca.pem"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestTLSConfig_InvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	s := NewMqttService(file.NewFileService(), zerolog.Nop())
	_, err := s.tlsConfig(path)
	assert.EqualError(t, err, "failed to append CA certificate")
}

func TestInitialize_PropagatesTLSError(t *testing.T) {
	s := NewMqttService(file.NewFileService(), zerolog.Nop())

	err := s.Initialize(Options{
		Broker:        "ssl://127.0.0.1:8883",
		ClientID:      "test",
		CACertificate: filepath.Join(t.TempDir(), "missing.pem"),
	})
	assert.Error(t, err)
}

func TestDisconnect_Uninitialized(t *testing.T) {
	s := NewMqttService(file.NewFileService(), zerolog.Nop())
	assert.NotPanics(t, func() { s.Disconnect(250) })
}
