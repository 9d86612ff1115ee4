package play

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func withLookPath(t *testing.T, available ...string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestFindAudioPlayer(t *testing.T) {
	withLookPath(t, "vlc", "ffplay")
	got, err := findAudioPlayer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ffplay" {
		t.Errorf("expected ffplay to be preferred over vlc, got %s", got)
	}
}

func TestFindAudioPlayer_None(t *testing.T) {
	withLookPath(t)
	_, err := findAudioPlayer()
	if err == nil || !strings.Contains(err.Error(), "mpv, ffplay, vlc, aplay") {
		t.Errorf("expected error listing players, got %v", err)
	}
}

func TestCommandFor(t *testing.T) {
	tests := []struct {
		player  string
		source  string
		want    []string
		wantErr bool
	}{
		{"mpv", "http://h/media/u/1.webm", []string{"mpv", "--no-video", "http://h/media/u/1.webm"}, false},
		{"ffplay", "/tmp/a.mp3", []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "/tmp/a.mp3"}, false},
		{"vlc", "/tmp/a.mp3", []string{"vlc", "--intf", "dummy", "--play-and-exit", "/tmp/a.mp3"}, false},
		{"aplay", "/tmp/a.wav", []string{"aplay", "/tmp/a.wav"}, false},
		{"aplay", "/tmp/a.webm", nil, true},
		{"aplay", "http://h/a.wav", nil, true},
		{"winamp", "/tmp/a.mp3", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.player+" "+tt.source, func(t *testing.T) {
			got, err := commandFor(tt.player, tt.source)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commandFor() = %v, want %v", got, tt.want)
			}
		})
	}
}
