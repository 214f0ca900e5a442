package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"chatbot/internal/domain"
	"chatbot/internal/ingest"
	"chatbot/internal/service"
	"chatbot/internal/session"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	HandleTurn(ctx context.Context, sess *session.Session, req service.TurnRequest) (service.TurnResult, error)
	HandleVoiceTurn(ctx context.Context, sess *session.Session, audio domain.Audio, req service.TurnRequest) (string, service.TurnResult, error)
	IngestFile(ctx context.Context, path string) (ingest.Result, error)
	DocumentCount() int
	Summarize(ctx context.Context, sess *session.Session) (string, error)
	RecordFeedback(ctx context.Context, text string) error
	UpdateProfile(ctx context.Context, sess *session.Session, p domain.Profile) error
	Search(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// Recorder captures microphone audio between Start and Stop.
type Recorder interface {
	Start() error
	Stop() (domain.Audio, error)
	Cancel()
	Recording() bool
}

// Options configure the chat screen. Recorder may be nil when no audio
// device is available.
type Options struct {
	Models    []string
	Languages []string
	Recorder  Recorder
}

type role int

const (
	roleUser role = iota
	roleAssistant
	roleInfo
	roleError
)

type entry struct {
	role role
	text string
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	service  ChatPort
	sess     *session.Session
	opts     Options
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	entries  []entry
	status   string
	useDocs  bool
	busy     bool
	ready    bool
}

// New creates the chat screen for one session.
func New(ctx context.Context, svc ChatPort, sess *session.Session, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message or /help"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	m := Model{
		ctx:      ctx,
		service:  svc,
		sess:     sess,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		renderer: newRenderer(80),
		useDocs:  svc.DocumentCount() > 0,
	}
	m.status = m.statusLine()
	return m
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

type turnDoneMsg struct {
	res service.TurnResult
	err error
}

type voiceDoneMsg struct {
	transcript string
	res        service.TurnResult
	err        error
}

// infoMsg carries the outcome of a side command.
type infoMsg struct {
	text     string
	markdown bool
	err      error
}

type uploadDoneMsg struct {
	res ingest.Result
	err error
}

// Update handles key, window and async result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.renderer = newRenderer(max(20, m.viewport.Width-4))
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.opts.Recorder != nil && m.opts.Recorder.Recording() {
				m.opts.Recorder.Cancel()
			}
			return m, tea.Quit
		case tea.KeyCtrlR:
			return m.toggleRecording()
		case tea.KeyEsc:
			if m.opts.Recorder != nil && m.opts.Recorder.Recording() {
				m.opts.Recorder.Cancel()
				m.status = "Recording discarded."
				return m, nil
			}
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			return m.submit(line)
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnDoneMsg:
		m.busy = false
		m.finishTurn(msg.res, msg.err)
		return m, nil

	case voiceDoneMsg:
		m.busy = false
		if msg.transcript != "" {
			m.add(roleUser, msg.transcript)
		}
		m.finishTurn(msg.res, msg.err)
		return m, nil

	case uploadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.add(roleError, msg.err.Error())
		} else {
			m.useDocs = true
			m.add(roleInfo, fmt.Sprintf("Indexed %s (%d chunks). Document answers are on.", msg.res.Name, msg.res.Chunks))
		}
		m.status = m.statusLine()
		m.refresh()
		return m, nil

	case infoMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.add(roleError, msg.err.Error())
		case msg.markdown:
			m.add(roleAssistant, msg.text)
		default:
			m.add(roleInfo, msg.text)
		}
		m.status = m.statusLine()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if cmd, ok := parseCommand(line); ok {
		return m.runCommand(cmd)
	}
	m.add(roleUser, line)
	m.refresh()
	req := service.TurnRequest{Input: line, UseDocuments: m.useDocs}
	ctx, svc, sess := m.ctx, m.service, m.sess
	return m.startBusy("Thinking", func() tea.Msg {
		res, err := svc.HandleTurn(ctx, sess, req)
		return turnDoneMsg{res: res, err: err}
	})
}

func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	rec := m.opts.Recorder
	if rec == nil {
		m.status = "Voice input is not available."
		return m, nil
	}
	if !rec.Recording() {
		if m.busy {
			return m, nil
		}
		if err := rec.Start(); err != nil {
			m.add(roleError, err.Error())
			m.refresh()
			return m, nil
		}
		m.status = "Recording... ctrl+r to send, esc to cancel."
		return m, nil
	}
	audio, err := rec.Stop()
	if err != nil {
		m.add(roleError, err.Error())
		m.status = m.statusLine()
		m.refresh()
		return m, nil
	}
	req := service.TurnRequest{UseDocuments: m.useDocs}
	ctx, svc, sess := m.ctx, m.service, m.sess
	return m.startBusy("Transcribing", func() tea.Msg {
		text, res, err := svc.HandleVoiceTurn(ctx, sess, audio, req)
		return voiceDoneMsg{transcript: text, res: res, err: err}
	})
}

func (m Model) startBusy(label string, work tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = label + "..."
	return m, tea.Batch(work, m.spinner.Tick)
}

func (m *Model) finishTurn(res service.TurnResult, err error) {
	if err != nil {
		m.add(roleError, err.Error())
	} else if res.Response != "" {
		m.add(roleAssistant, res.Response+renderSources(res.Sources, res.Turn.UserText))
		if res.Warning != nil {
			m.add(roleError, res.Warning.Error())
		}
	}
	m.status = m.statusLine()
	m.refresh()
}

func (m *Model) add(r role, text string) {
	m.entries = append(m.entries, entry{role: r, text: text})
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m Model) statusLine() string {
	st := m.sess.Snapshot()
	return fmt.Sprintf("model %s | lang %s | voice %s | docs %s",
		st.ModelID, st.Language, onOff(st.Profile.VoiceEnabled), onOff(m.useDocs))
}

// View renders the header, conversation, input and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	name := m.sess.Snapshot().Profile.Name
	title := "Chatbot"
	if name != "" {
		title += " - " + name
	}
	header := headerStyle.Render(title)
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + chat + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return infoStyle.Render("Say hello, or type /help for commands.")
	}
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			b.WriteString(userStyle.Render("You: ") + e.text + "\n")
		case roleAssistant:
			b.WriteString(m.renderMarkdown(e.text))
		case roleInfo:
			b.WriteString(infoStyle.Render(e.text) + "\n")
		case roleError:
			b.WriteString(errorStyle.Render("Error: "+e.text) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return assistantStyle.Render("Bot: ") + text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return assistantStyle.Render("Bot: ") + text + "\n"
	}
	return out
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{M}]+(?:['’][\p{L}\p{M}]+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?।]+[.!?।])`)
)

// renderSources lists the document chunks behind an answer as markdown,
// quoting the sentence of each chunk that best matches the question.
func renderSources(results []domain.SearchResult, question string) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n**Sources**\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. `%s` (%.2f) %s\n", i+1, r.Chunk.ChunkID, r.Score, bestSentence(r.Chunk.Text, question))
	}
	return b.String()
}

func bestSentence(text, query string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return strings.TrimSpace(sentences[bestIdx])
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
