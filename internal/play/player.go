package play

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// players in order of preference
var players = []string{"mpv", "ffplay", "vlc", "aplay"}

var lookPath = exec.LookPath

type Player struct {
	// Resolve maps a stored audio URL to a local file when the store holds it;
	// otherwise the URL is streamed.
	Resolve func(url string) (string, bool)
}

func New(resolve func(url string) (string, bool)) *Player {
	return &Player{Resolve: resolve}
}

// Play plays an entry's audio and blocks until playback ends or ctx is done
func (p *Player) Play(ctx context.Context, audioURL string) error {
	source := audioURL
	if p.Resolve != nil {
		if local, ok := p.Resolve(audioURL); ok {
			source = local
		}
	}

	player, err := findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	args, err := commandFor(player, source)
	if err != nil {
		return err
	}

	slog.Info("Playing", "source", source, "player", player)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	slog.Debug("Playback completed")
	return nil
}

func commandFor(player, source string) ([]string, error) {
	switch player {
	case "mpv":
		return []string{"mpv", "--no-video", source}, nil
	case "ffplay":
		return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", source}, nil
	case "vlc":
		return []string{"vlc", "--intf", "dummy", "--play-and-exit", source}, nil
	case "aplay":
		// aplay only reads local WAV files
		if isRemote(source) || !strings.HasSuffix(strings.ToLower(source), ".wav") {
			return nil, fmt.Errorf("aplay can only play local WAV files, got %s", source)
		}
		return []string{"aplay", source}, nil
	default:
		return nil, fmt.Errorf("unsupported player: %s", player)
	}
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
