package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot/internal/domain"
	"chatbot/internal/ingest"
	"chatbot/internal/service"
	"chatbot/internal/session"
)

type fakeChat struct {
	requests []service.TurnRequest
	profile  *domain.Profile
	feedback []string
	uploads  []string
	docs     int
	turnErr  error
}

func (f *fakeChat) HandleTurn(ctx context.Context, sess *session.Session, req service.TurnRequest) (service.TurnResult, error) {
	f.requests = append(f.requests, req)
	if f.turnErr != nil {
		return service.TurnResult{}, f.turnErr
	}
	turn := domain.Turn{UserText: req.Input, AssistantText: "reply to " + req.Input}
	_ = sess.Do(func(st *session.State) error {
		st.History = append(st.History, turn)
		return nil
	})
	return service.TurnResult{Response: turn.AssistantText, Turn: turn}, nil
}

func (f *fakeChat) HandleVoiceTurn(ctx context.Context, sess *session.Session, a domain.Audio, req service.TurnRequest) (string, service.TurnResult, error) {
	req.Input = "spoken"
	res, err := f.HandleTurn(ctx, sess, req)
	return "spoken", res, err
}

func (f *fakeChat) IngestFile(ctx context.Context, path string) (ingest.Result, error) {
	f.uploads = append(f.uploads, path)
	f.docs += 3
	return ingest.Result{Name: path, Chunks: 3}, nil
}

func (f *fakeChat) DocumentCount() int { return f.docs }

func (f *fakeChat) Summarize(ctx context.Context, sess *session.Session) (string, error) {
	return "a summary", nil
}

func (f *fakeChat) RecordFeedback(ctx context.Context, text string) error {
	if text == "" {
		return domain.ErrValidation
	}
	f.feedback = append(f.feedback, text)
	return nil
}

func (f *fakeChat) UpdateProfile(ctx context.Context, sess *session.Session, p domain.Profile) error {
	f.profile = &p
	return sess.Do(func(st *session.State) error {
		st.Profile = p
		return nil
	})
}

func (f *fakeChat) Search(ctx context.Context, query string) ([]domain.SearchHit, error) {
	return []domain.SearchHit{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}, nil
}

type fakeRecorder struct {
	recording bool
	canceled  bool
}

func (r *fakeRecorder) Start() error {
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() (domain.Audio, error) {
	r.recording = false
	return domain.Audio{SampleRate: 16000, Samples: make([]float32, 16000)}, nil
}

func (r *fakeRecorder) Cancel() {
	r.recording = false
	r.canceled = true
}

func (r *fakeRecorder) Recording() bool { return r.recording }

func newTestModel(chat *fakeChat, rec Recorder) Model {
	sess := session.New("default", session.State{Language: "en", ModelID: "gpt-3.5-turbo"})
	m := New(context.Background(), chat, sess, Options{
		Models:    []string{"gpt-3.5-turbo", "gpt-4"},
		Languages: []string{"en", "hi", "mr"},
		Recorder:  rec,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

// drain runs cmd and feeds every produced message except spinner ticks back
// into the model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		cmd = nil
		var msgs []tea.Msg
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c != nil {
					msgs = append(msgs, c())
				}
			}
		} else {
			msgs = []tea.Msg{msg}
		}
		for _, msg := range msgs {
			switch msg.(type) {
			case turnDoneMsg, voiceDoneMsg, uploadDoneMsg, infoMsg:
				next, _ := m.Update(msg)
				m = next.(Model)
			}
		}
	}
	return m
}

func typeLine(t *testing.T, m Model, line string) Model {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return drain(t, next.(Model), cmd)
}

func lastEntry(m Model) entry {
	return m.entries[len(m.entries)-1]
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want command
		ok   bool
	}{
		{"/model gpt-4", command{name: "model", arg: "gpt-4"}, true},
		{"  /SEARCH  golang  tips ", command{name: "search", arg: "golang  tips"}, true},
		{"/help", command{name: "help"}, true},
		{"/", command{}, false},
		{"hello /model", command{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestModel_ChatTurn(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{}
	m := typeLine(t, newTestModel(chat, nil), "Hello")

	require.Len(t, chat.requests, 1)
	assert.Equal(t, "Hello", chat.requests[0].Input)
	assert.False(t, chat.requests[0].UseDocuments)
	assert.False(t, m.busy)
	assert.Equal(t, entry{role: roleAssistant, text: "reply to Hello"}, lastEntry(m))
	assert.Empty(t, m.input.Value())
}

func TestModel_TurnError(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{turnErr: errors.New("model unavailable")}
	m := typeLine(t, newTestModel(chat, nil), "Hello")
	assert.Equal(t, roleError, lastEntry(m).role)
	assert.Contains(t, lastEntry(m).text, "model unavailable")
}

func TestModel_Commands(t *testing.T) {
	t.Parallel()

	t.Run("model and language", func(t *testing.T) {
		t.Parallel()
		m := newTestModel(&fakeChat{}, nil)
		m = typeLine(t, m, "/model gpt-4")
		m = typeLine(t, m, "/lang mr")
		st := m.sess.Snapshot()
		assert.Equal(t, "gpt-4", st.ModelID)
		assert.Equal(t, "mr", st.Language)

		m = typeLine(t, m, "/model nope")
		assert.Equal(t, roleError, lastEntry(m).role)
		assert.Equal(t, "gpt-4", m.sess.Snapshot().ModelID)
	})

	t.Run("profile", func(t *testing.T) {
		t.Parallel()
		chat := &fakeChat{}
		m := newTestModel(chat, nil)
		m = typeLine(t, m, "/name Meera")
		m = typeLine(t, m, "/voice on")
		require.NotNil(t, chat.profile)
		assert.Equal(t, "Meera", chat.profile.Name)
		assert.True(t, chat.profile.VoiceEnabled)
		assert.Contains(t, m.View(), "Meera")

		m = typeLine(t, m, "/voice maybe")
		assert.Equal(t, roleError, lastEntry(m).role)
	})

	t.Run("upload enables documents", func(t *testing.T) {
		t.Parallel()
		chat := &fakeChat{}
		m := newTestModel(chat, nil)
		m = typeLine(t, m, "/upload notes.pdf")
		assert.Equal(t, []string{"notes.pdf"}, chat.uploads)
		assert.True(t, m.useDocs)

		m = typeLine(t, m, "What is in my notes?")
		assert.True(t, chat.requests[0].UseDocuments)

		m = typeLine(t, m, "/docs off")
		assert.False(t, m.useDocs)
	})

	t.Run("side flows", func(t *testing.T) {
		t.Parallel()
		chat := &fakeChat{}
		m := newTestModel(chat, nil)
		m = typeLine(t, m, "/feedback great bot")
		assert.Equal(t, []string{"great bot"}, chat.feedback)

		m = typeLine(t, m, "/summarize")
		assert.Equal(t, roleAssistant, lastEntry(m).role)
		assert.Contains(t, lastEntry(m).text, "a summary")

		m = typeLine(t, m, "/search golang")
		assert.Contains(t, lastEntry(m).text, "https://go.dev")

		m = typeLine(t, m, "/bogus")
		assert.Equal(t, roleError, lastEntry(m).role)
		assert.Empty(t, chat.requests)
	})
}

func TestModel_Recording(t *testing.T) {
	t.Parallel()

	t.Run("record and send", func(t *testing.T) {
		t.Parallel()
		chat := &fakeChat{}
		rec := &fakeRecorder{}
		m := newTestModel(chat, rec)

		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
		m = next.(Model)
		assert.True(t, rec.recording)

		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
		m = drain(t, next.(Model), cmd)
		assert.False(t, rec.recording)
		require.Len(t, chat.requests, 1)
		assert.Equal(t, "spoken", chat.requests[0].Input)
		assert.Equal(t, entry{role: roleAssistant, text: "reply to spoken"}, lastEntry(m))
	})

	t.Run("escape discards", func(t *testing.T) {
		t.Parallel()
		chat := &fakeChat{}
		rec := &fakeRecorder{}
		m := newTestModel(chat, rec)

		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
		next, _ = next.(Model).Update(tea.KeyMsg{Type: tea.KeyEsc})
		m = next.(Model)
		assert.True(t, rec.canceled)
		assert.Empty(t, chat.requests)
		assert.Equal(t, "Recording discarded.", m.status)
	})

	t.Run("no device", func(t *testing.T) {
		t.Parallel()
		next, cmd := newTestModel(&fakeChat{}, nil).Update(tea.KeyMsg{Type: tea.KeyCtrlR})
		assert.Nil(t, cmd)
		assert.Equal(t, "Voice input is not available.", next.(Model).status)
	})
}

func TestBestSentence(t *testing.T) {
	t.Parallel()
	text := "Paris is in France. The capital of India is New Delhi. Rain is wet."
	assert.Equal(t, "The capital of India is New Delhi.", bestSentence(text, "capital of India"))
	assert.Equal(t, "", bestSentence("  ", "x"))
	assert.Equal(t, "no terminator", bestSentence("no terminator", "x"))
}
