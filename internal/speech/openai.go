// Package speech adapts speech-to-text and text-to-speech services and runs
// the background speaker.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"chatbot/internal/domain"
)

// TTSSampleRate is the rate of the PCM stream returned by the speech endpoint.
const TTSSampleRate = 24000

// Config configures the OpenAI audio endpoints.
type Config struct {
	BaseURL         string
	APIKeyEnv       string
	TranscribeModel string
	SpeechModel     string
	Voice           string
}

// OpenAI implements domain.Transcriber with Whisper and domain.Synthesizer
// with the speech endpoint.
type OpenAI struct {
	client          openai.Client
	transcribeModel string
	speechModel     string
	voice           string
}

var (
	_ domain.Transcriber = (*OpenAI)(nil)
	_ domain.Synthesizer = (*OpenAI)(nil)
)

func NewOpenAI(cfg Config) (*OpenAI, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "whisper-1"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	return &OpenAI{
		client:          openai.NewClient(opts...),
		transcribeModel: cfg.TranscribeModel,
		speechModel:     cfg.SpeechModel,
		voice:           cfg.Voice,
	}, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, a domain.Audio, lang string) (string, error) {
	wavData, err := EncodeWAV(a)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRecognition, err)
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wavData), "speech.wav", "audio/wav"),
		Model: openai.AudioModel(o.transcribeModel),
	}
	if lang != "" {
		params.Language = openai.String(lang)
	}
	tr, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRecognition, err)
	}
	return strings.TrimSpace(tr.Text), nil
}

func (o *OpenAI) Speak(ctx context.Context, text string) (domain.Audio, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.speechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return domain.Audio{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("%w: read audio: %w", domain.ErrSynthesis, err)
	}
	a, err := DecodePCM16(data, TTSSampleRate)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	return a, nil
}
