package audio

import (
	"errors"
	"strings"
	"testing"
)

func withLookPath(t *testing.T, installed ...string) {
	t.Helper()
	orig := lookPath
	lookPath = func(file string) (string, error) {
		for _, name := range installed {
			if name == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestResolveBackend_AutoPrefersFFmpeg(t *testing.T) {
	withLookPath(t, "ffmpeg", "arecord")

	b, err := ResolveBackend("auto")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if b != BackendTypeFFmpeg {
		t.Errorf("Expected ffmpeg, got %s", b)
	}
}

func TestResolveBackend_AutoFallsBackToARecord(t *testing.T) {
	withLookPath(t, "arecord")

	b, err := ResolveBackend("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if b != BackendTypeARecord {
		t.Errorf("Expected arecord, got %s", b)
	}
}

func TestResolveBackend_NothingInstalled(t *testing.T) {
	withLookPath(t)

	_, err := ResolveBackend("auto")
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Errorf("Expected ErrCaptureUnavailable, got: %v", err)
	}

	_, err = ResolveBackend("ffmpeg")
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Errorf("Expected ErrCaptureUnavailable for missing ffmpeg, got: %v", err)
	}
}

func TestResolveBackend_Unknown(t *testing.T) {
	withLookPath(t, "ffmpeg")

	_, err := ResolveBackend("jack")
	if err == nil || !strings.Contains(err.Error(), "unknown capture backend") {
		t.Errorf("Expected unknown backend error, got: %v", err)
	}
}

func TestBackends_ReportsAvailability(t *testing.T) {
	withLookPath(t, "arecord")

	infos := Backends()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 backends, got %d", len(infos))
	}
	if infos[0].Type != BackendTypeFFmpeg || infos[0].Available {
		t.Errorf("Expected ffmpeg unavailable, got %+v", infos[0])
	}
	if infos[1].Type != BackendTypeARecord || !infos[1].Available || infos[1].Path != "/usr/bin/arecord" {
		t.Errorf("Expected arecord available, got %+v", infos[1])
	}
}

func TestCaptureArgs(t *testing.T) {
	args, err := captureArgs(BackendTypeFFmpeg, "alsa_input.usb")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-i alsa_input.usb") || !strings.HasSuffix(joined, "-f webm pipe:1") {
		t.Errorf("Unexpected ffmpeg args: %s", joined)
	}

	args, err = captureArgs(BackendTypeARecord, "hw:1,0")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if args[0] != "arecord" || !strings.Contains(strings.Join(args, " "), "-D hw:1,0") {
		t.Errorf("Unexpected arecord args: %v", args)
	}

	if _, err := captureArgs(BackendTypeAuto, "default"); err == nil {
		t.Error("Expected error for unresolved backend")
	}
}

func TestParsePactlSources(t *testing.T) {
	output := "0\talsa_output.pci.monitor\tmodule-alsa-card.c\ts16le 2ch 44100Hz\tSUSPENDED\n" +
		"1\talsa_input.usb-Mic\tmodule-alsa-card.c\ts16le 1ch 48000Hz\tRUNNING\n\n"

	sources := parsePactlSources(output)
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d: %v", len(sources), sources)
	}
	if sources[1] != "alsa_input.usb-Mic" {
		t.Errorf("Expected alsa_input.usb-Mic, got %s", sources[1])
	}
}

func TestParseARecordDevices(t *testing.T) {
	output := "null\n    Discard all samples\ndefault\n    Default ALSA Output\nhw:CARD=Mic,DEV=0\n    USB Mic, USB Audio\n"

	devices := parseARecordDevices(output)
	expected := []string{"null", "default", "hw:CARD=Mic,DEV=0"}
	if len(devices) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, devices)
	}
	for i := range expected {
		if devices[i] != expected[i] {
			t.Errorf("devices[%d] = %s, expected %s", i, devices[i], expected[i])
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor(BackendTypeFFmpeg); got != "audio/webm" {
		t.Errorf("Expected audio/webm, got %s", got)
	}
	if got := contentTypeFor(BackendTypeARecord); got != "audio/wav" {
		t.Errorf("Expected audio/wav, got %s", got)
	}
}
