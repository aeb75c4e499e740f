package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mrchandrayee/interview-practice/pkg/core"
)

// Decoder turns an opaque received audio segment into playable PCM.
type Decoder interface {
	Decode(data []byte) ([]byte, error)
}

// Player plays one decoded segment to completion. Play must block until the
// segment has finished and must return promptly with ctx.Err() when ctx is
// cancelled mid-segment.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) ([]byte, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(data []byte) ([]byte, error) { return f(data) }

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(ctx context.Context, pcm []byte) error

// Play implements Player.
func (f PlayerFunc) Play(ctx context.Context, pcm []byte) error { return f(ctx, pcm) }

// AudioQueue plays binary audio segments strictly in arrival order, one at a
// time. Segments are exclusively owned by the queue from Enqueue until they
// finish playing; callers must not retain them.
//
// A single consumer goroutine runs while the queue is non-empty. Enqueue
// during active playback only appends; it never starts a second consumer.
type AudioQueue struct {
	dec    Decoder
	player Player
	logger *slog.Logger

	mu         sync.Mutex
	queue      [][]byte
	running    bool
	closed     bool
	playCancel context.CancelFunc
	idleCh     chan struct{}
}

// NewAudioQueue creates a queue that decodes segments with dec (nil means
// segments are already playable) and plays them through player.
func NewAudioQueue(dec Decoder, player Player, logger *slog.Logger) *AudioQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioQueue{
		dec:    dec,
		player: player,
		logger: logger,
	}
}

// Enqueue appends a segment to the tail. Safe to call while a previous
// segment is still playing.
func (q *AudioQueue) Enqueue(segment []byte) {
	q.mu.Lock()
	if q.closed || len(segment) == 0 {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, segment)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	done := make(chan struct{})
	q.idleCh = done
	q.mu.Unlock()

	go q.consume(done)
}

func (q *AudioQueue) consume(done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		if q.closed || len(q.queue) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		segment := q.queue[0]
		q.queue = q.queue[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.playCancel = cancel
		q.mu.Unlock()

		q.playSegment(ctx, segment)

		cancel()
		q.mu.Lock()
		q.playCancel = nil
		q.mu.Unlock()
	}
}

func (q *AudioQueue) playSegment(ctx context.Context, segment []byte) {
	pcm := segment
	if q.dec != nil {
		decoded, err := q.dec.Decode(segment)
		if err != nil {
			// One bad segment never halts the queue.
			q.logger.Warn("skipping audio segment that failed to decode",
				"error", core.NewPlaybackError(fmt.Sprintf("decode segment: %v", err)))
			return
		}
		pcm = decoded
	}

	if err := q.player.Play(ctx, pcm); err != nil && ctx.Err() == nil {
		q.logger.Warn("audio segment playback failed",
			"error", core.NewPlaybackError(fmt.Sprintf("play segment: %v", err)))
	}
}

// Interrupt stops the currently playing segment and drops every queued but
// unplayed segment. Partial segments are discarded, not rewound.
func (q *AudioQueue) Interrupt() {
	q.mu.Lock()
	q.queue = nil
	cancel := q.playCancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close interrupts playback and rejects further enqueues. It returns only
// after the consumer has stopped; nothing plays afterward. Idempotent.
func (q *AudioQueue) Close() {
	q.mu.Lock()
	if q.closed {
		idle := q.idleCh
		running := q.running
		q.mu.Unlock()
		if running && idle != nil {
			<-idle
		}
		return
	}
	q.closed = true
	q.queue = nil
	cancel := q.playCancel
	idle := q.idleCh
	running := q.running
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if running && idle != nil {
		<-idle
	}
}

// Pending returns the number of queued, not-yet-playing segments.
func (q *AudioQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
