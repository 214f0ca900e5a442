// Package audio captures microphone input and plays synthesized speech.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"chatbot/internal/domain"
)

const (
	// SampleRate is what the transcription models expect.
	SampleRate      = 16000
	FramesPerBuffer = 1024
	// MinSamples pads very short recordings to 200ms.
	MinSamples = SampleRate / 5
)

// ErrNotRecording is returned by Stop when no capture is running.
var ErrNotRecording = errors.New("not recording")

// Initialize must be called once before using Recorder or Player.
func Initialize() error { return portaudio.Initialize() }

// Terminate releases the audio subsystem.
func Terminate() error { return portaudio.Terminate() }

// Recorder captures mono float32 samples from the default input device.
// A capture is ended by Stop, which keeps the samples, or Cancel, which
// discards them.
type Recorder struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	buffer     []float32
	samples    []float32
	maxSamples int
	running    bool
	done       chan struct{}
}

func NewRecorder(maxDuration time.Duration) *Recorder {
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}
	return &Recorder{
		buffer:     make([]float32, FramesPerBuffer),
		maxSamples: int(maxDuration.Seconds() * SampleRate),
	}
}

// Start opens the input stream and begins capturing.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, FramesPerBuffer, r.buffer)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	r.stream = stream
	r.samples = make([]float32, 0, SampleRate*5)
	r.done = make(chan struct{})
	r.running = true
	go r.loop(stream, r.done)
	return nil
}

func (r *Recorder) loop(stream *portaudio.Stream, done chan struct{}) {
	defer close(done)
	for {
		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		if !running {
			return
		}
		available, err := stream.AvailableToRead()
		if err != nil || available < FramesPerBuffer {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := stream.Read(); err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		r.mu.Lock()
		if r.running && len(r.samples) < r.maxSamples {
			r.samples = append(r.samples, r.buffer...)
		}
		r.mu.Unlock()
	}
}

// Recording reports whether a capture is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop ends the capture and returns what was recorded.
func (r *Recorder) Stop() (domain.Audio, error) {
	samples, ok := r.halt()
	if !ok {
		return domain.Audio{}, ErrNotRecording
	}
	return domain.Audio{SampleRate: SampleRate, Samples: PadToMin(samples, MinSamples)}, nil
}

// Cancel ends the capture and drops the samples.
func (r *Recorder) Cancel() {
	r.halt()
}

// Capture records until ctx is done and returns the samples. It is the
// blocking form used by the CLI.
func (r *Recorder) Capture(ctx context.Context) (domain.Audio, error) {
	if err := r.Start(); err != nil {
		return domain.Audio{}, err
	}
	<-ctx.Done()
	return r.Stop()
}

func (r *Recorder) halt() ([]float32, bool) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, false
	}
	r.running = false
	stream, done, samples := r.stream, r.done, r.samples
	r.stream, r.samples = nil, nil
	r.mu.Unlock()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
	stream.Stop()
	stream.Close()
	return samples, true
}

// PadToMin appends silence so that samples has at least n entries.
func PadToMin(samples []float32, n int) []float32 {
	if len(samples) >= n {
		return samples
	}
	return append(samples, make([]float32, n-len(samples))...)
}

// Player writes audio to the default output device.
type Player struct {
	mu sync.Mutex
}

func NewPlayer() *Player { return &Player{} }

// Play blocks until a is played or ctx is done. Only one clip plays at a time.
func (p *Player) Play(ctx context.Context, a domain.Audio) error {
	if len(a.Samples) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]float32, FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(a.SampleRate), len(buf), buf)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for off := 0; off < len(a.Samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, a.Samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
