package audio

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/voicediary/internal/config"
)

// BackendType represents the external recorder used for capture
type BackendType string

const (
	BackendTypeFFmpeg  BackendType = "ffmpeg"
	BackendTypeARecord BackendType = "arecord"
	BackendTypeAuto    BackendType = "auto"
)

// preference order for auto
var knownBackends = []BackendType{BackendTypeFFmpeg, BackendTypeARecord}

// BackendInfo describes one backend and whether its binary is installed
type BackendInfo struct {
	Type      BackendType `json:"type"`
	Binary    string      `json:"binary"`
	Path      string      `json:"path,omitempty"`
	Available bool        `json:"available"`
}

var lookPath = exec.LookPath

// Backends returns every known backend with its availability on this system
func Backends() []BackendInfo {
	infos := make([]BackendInfo, 0, len(knownBackends))
	for _, b := range knownBackends {
		info := BackendInfo{Type: b, Binary: string(b)}
		if path, err := lookPath(info.Binary); err == nil {
			info.Path = path
			info.Available = true
		}
		infos = append(infos, info)
	}
	return infos
}

// CheckBackend returns an error when the backend's binary is not installed
func CheckBackend(b BackendType) error {
	if _, err := lookPath(string(b)); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrCaptureUnavailable, b)
	}
	return nil
}

// ResolveBackend maps a configured name to an installed backend
func ResolveBackend(name string) (BackendType, error) {
	switch BackendType(strings.ToLower(name)) {
	case BackendTypeFFmpeg:
		return BackendTypeFFmpeg, CheckBackend(BackendTypeFFmpeg)
	case BackendTypeARecord:
		return BackendTypeARecord, CheckBackend(BackendTypeARecord)
	case BackendTypeAuto, "":
		for _, b := range knownBackends {
			if CheckBackend(b) == nil {
				return b, nil
			}
		}
		return "", fmt.Errorf("%w: neither ffmpeg nor arecord is installed", ErrCaptureUnavailable)
	}
	return "", fmt.Errorf("unknown capture backend: %s", name)
}

// NewDevice creates the capture device described by the configuration
func NewDevice(cfg config.CaptureConfig) (*CommandDevice, error) {
	backend, err := ResolveBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return NewCommandDevice(backend, cfg.Device, cfg.ChunkSize), nil
}

// ListSources returns the input devices the backend can record from
func ListSources(b BackendType) ([]string, error) {
	switch b {
	case BackendTypeFFmpeg:
		output, err := exec.Command("pactl", "list", "short", "sources").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list PulseAudio sources: %w", err)
		}
		return parsePactlSources(string(output)), nil
	case BackendTypeARecord:
		output, err := exec.Command("arecord", "-L").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to list ALSA devices: %w", err)
		}
		return parseARecordDevices(string(output)), nil
	}
	return nil, fmt.Errorf("unsupported capture backend: %s", b)
}

// parsePactlSources extracts source names from `pactl list short sources`
func parsePactlSources(output string) []string {
	var sources []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		sources = append(sources, fields[1])
	}
	return sources
}

// parseARecordDevices extracts PCM names from `arecord -L`; descriptions are
// indented and skipped.
func parseARecordDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		if line == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}
		devices = append(devices, strings.TrimSpace(line))
	}
	return devices
}
