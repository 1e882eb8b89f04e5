package location

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benmeehan/location-reporter/pkg/file"
)

// ErrPermissionDenied indicates the agent is not allowed to acquire the device location.
var ErrPermissionDenied = errors.New("location permission denied")

// PermissionChecker verifies that location updates may be started.
type PermissionChecker interface {
	CheckPermission() error
}

// DevicePermission grants access when the GPS device node can be opened for reading.
type DevicePermission struct {
	devicePath string
	fileOps    file.FileOperations
}

// NewDevicePermission creates a checker for the given device node.
func NewDevicePermission(devicePath string, fileOps file.FileOperations) *DevicePermission {
	return &DevicePermission{devicePath: devicePath, fileOps: fileOps}
}

// CheckPermission returns ErrPermissionDenied if the device node is missing or unreadable.
func (p *DevicePermission) CheckPermission() error {
	if err := p.fileOps.CheckReadable(p.devicePath); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, p.devicePath, err)
	}
	return nil
}

// APIKeyPermission grants access when a Maps API key is configured.
type APIKeyPermission struct {
	apiKey string
}

// NewAPIKeyPermission creates a checker for network based geolocation.
func NewAPIKeyPermission(apiKey string) *APIKeyPermission {
	return &APIKeyPermission{apiKey: apiKey}
}

// CheckPermission returns ErrPermissionDenied when no API key is set.
func (p *APIKeyPermission) CheckPermission() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return fmt.Errorf("%w: maps api key not configured", ErrPermissionDenied)
	}
	return nil
}
