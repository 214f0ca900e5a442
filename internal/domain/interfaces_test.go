package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatbot/internal/domain"
)

func TestAudio_Duration(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 500*time.Millisecond, domain.Audio{SampleRate: 16000, Samples: make([]float32, 8000)}.Duration())
	assert.Zero(t, domain.Audio{SampleRate: 16000}.Duration())
	assert.Zero(t, domain.Audio{Samples: make([]float32, 10)}.Duration())
}
