package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"chatbot/internal/domain"
	"chatbot/internal/logger"
)

const topic = "speech.requests"

// Player plays audio.
type Player interface {
	Play(ctx context.Context, a domain.Audio) error
}

// Speaker is a domain.SpeechQueue: Enqueue publishes the text and returns,
// a single worker synthesizes and plays messages in order.
type Speaker struct {
	pubsub *gochannel.GoChannel
	synth  domain.Synthesizer
	player Player

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

var _ domain.SpeechQueue = (*Speaker)(nil)

func NewSpeaker(synth domain.Synthesizer, player Player) *Speaker {
	return &Speaker{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{}),
		synth:  synth,
		player: player,
	}
}

// Start subscribes the worker. It runs until ctx is done or Close is called.
func (s *Speaker) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("speaker closed")
	}
	if s.started {
		return nil
	}
	msgs, err := s.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.started = true
	s.wg.Add(1)
	go s.run(ctx, msgs)
	return nil
}

func (s *Speaker) run(ctx context.Context, msgs <-chan *message.Message) {
	defer s.wg.Done()
	for msg := range msgs {
		s.handle(ctx, string(msg.Payload))
		msg.Ack()
	}
}

func (s *Speaker) handle(ctx context.Context, text string) {
	a, err := s.synth.Speak(ctx, text)
	if err != nil {
		logger.Warn("Speech synthesis failed", "error", err)
		return
	}
	if err := s.player.Play(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Speech playback failed", "error", err)
	}
}

// Enqueue publishes text for the worker.
func (s *Speaker) Enqueue(_ context.Context, text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("speaker closed")
	}
	return s.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte(text)))
}

// Close stops the worker after the in-flight message.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	err := s.pubsub.Close()
	s.wg.Wait()
	return err
}
