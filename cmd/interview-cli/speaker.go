package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const speakerTick = 20 * time.Millisecond

// speaker plays PCM through a long-lived ffplay process. Writes are paced to
// roughly realtime so that Play blocks for the segment's duration, which
// keeps cancellation responsive: an interrupt lands between chunks and the
// process is restarted to drop whatever ffplay still had buffered.
type speaker struct {
	path       string
	sampleRate int
	channels   int
	logLevel   string
	volume     int

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newSpeaker(path string, sampleRate, channels, volume int) *speaker {
	if strings.TrimSpace(path) == "" {
		path = "ffplay"
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	if volume <= 0 {
		volume = 80
	}
	return &speaker{
		path:       path,
		sampleRate: sampleRate,
		channels:   channels,
		logLevel:   "error",
		volume:     volume,
	}
}

func (s *speaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *speaker) startLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}
	// ffplay does not accept ffmpeg-style `-ac` (channels); use `-ch_layout`.
	chLayout := "mono"
	if s.channels == 2 {
		chLayout = "stereo"
	}
	args := []string{
		"-hide_banner",
		"-loglevel", s.logLevel,
		"-nostats",
		"-volume", fmt.Sprintf("%d", s.volume),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", chLayout,
		"-ar", fmt.Sprintf("%d", s.sampleRate),
		"-i", "-",
	}
	cmd := exec.Command(s.path, args...)
	if runtime.GOOS == "darwin" {
		// ffplay uses SDL for audio output on macOS. In some environments SDL
		// selects a dummy backend with no sound; prefer CoreAudio unless the
		// user explicitly overrides it.
		if os.Getenv("SDL_AUDIODRIVER") == "" {
			cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
		}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return err
	}
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.mu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.mu.Unlock()
	}(cmd)
	return nil
}

// Play implements the live session player contract: it blocks until the
// segment has been streamed out and returns ctx.Err() promptly when
// cancelled mid-segment.
func (s *speaker) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := s.Start(); err != nil {
		return err
	}

	bytesPerTick := s.sampleRate * s.channels * 2 * int(speakerTick) / int(time.Second)
	if bytesPerTick <= 0 {
		bytesPerTick = len(pcm)
	}

	ticker := time.NewTicker(speakerTick)
	defer ticker.Stop()

	for offset := 0; offset < len(pcm); {
		select {
		case <-ctx.Done():
			// Drop ffplay's internal buffer so the voice stops now, not
			// seconds from now.
			s.restart()
			return ctx.Err()
		case <-ticker.C:
		}

		end := offset + bytesPerTick
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := s.write(pcm[offset:end]); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func (s *speaker) write(p []byte) error {
	s.mu.Lock()
	stdin := s.stdin
	s.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("ffplay is not running")
	}
	_, err := stdin.Write(p)
	return err
}

func (s *speaker) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	_ = s.startLocked()
}

func (s *speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *speaker) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
}
