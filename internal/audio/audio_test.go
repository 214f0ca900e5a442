package audio_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatbot/internal/audio"
)

func TestPadToMin(t *testing.T) {
	t.Parallel()
	short := audio.PadToMin([]float32{0.5}, 4)
	assert.Equal(t, []float32{0.5, 0, 0, 0}, short)

	long := []float32{1, 2, 3}
	assert.Equal(t, long, audio.PadToMin(long, 2))
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	t.Parallel()
	r := audio.NewRecorder(time.Second)
	assert.False(t, r.Recording())
	_, err := r.Stop()
	assert.ErrorIs(t, err, audio.ErrNotRecording)
	r.Cancel()
}

func TestRecorder_CaptureNeedsInitializedDevice(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := audio.NewRecorder(time.Second)
	_, err := r.Capture(ctx)
	assert.Error(t, err)
	assert.False(t, r.Recording())
}
