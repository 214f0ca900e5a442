package tui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = `Commands:
  /model [id]        show or switch the language model
  /lang [code]       show or switch the conversation language
  /voice on|off      speak replies aloud
  /docs on|off       answer from uploaded documents
  /upload <path>     index a pdf, txt or docx file
  /summarize         summarize this conversation
  /search <query>    search the web
  /feedback <text>   leave feedback
  /name <name>       set your name
  /help              show this help
  /quit              exit
Keys: ctrl+r record or send voice, esc cancel recording, pgup/pgdown scroll.`

type command struct {
	name string
	arg  string
}

// parseCommand splits "/name rest of line". Lines not starting with a slash
// are chat input.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

func parseSwitch(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

func (m Model) runCommand(c command) (tea.Model, tea.Cmd) {
	ctx, svc, sess := m.ctx, m.service, m.sess
	switch c.name {
	case "help", "?":
		m.info(helpText)

	case "quit", "exit":
		return m, tea.Quit

	case "model":
		if c.arg == "" {
			m.info("Models: " + strings.Join(m.opts.Models, ", ") + "\nCurrent: " + sess.Snapshot().ModelID)
			break
		}
		if !slices.Contains(m.opts.Models, c.arg) {
			m.fail(fmt.Errorf("unknown model %q", c.arg))
			break
		}
		sess.SetModel(c.arg)
		m.info("Model set to " + c.arg)

	case "lang", "language":
		if c.arg == "" {
			m.info("Languages: " + strings.Join(m.opts.Languages, ", ") + "\nCurrent: " + sess.Snapshot().Language)
			break
		}
		if !slices.Contains(m.opts.Languages, c.arg) {
			m.fail(fmt.Errorf("unknown language %q", c.arg))
			break
		}
		sess.SetLanguage(c.arg)
		m.info("Language set to " + c.arg)

	case "docs":
		on, err := parseSwitch(c.arg)
		if err != nil {
			m.fail(err)
			break
		}
		m.useDocs = on
		m.info(fmt.Sprintf("Document answers %s (%d chunks indexed).", onOff(on), svc.DocumentCount()))

	case "voice", "name":
		p := sess.Snapshot().Profile
		if c.name == "voice" {
			on, err := parseSwitch(c.arg)
			if err != nil {
				m.fail(err)
				break
			}
			p.VoiceEnabled = on
		} else {
			if c.arg == "" {
				m.fail(errors.New("usage: /name <name>"))
				break
			}
			p.Name = c.arg
		}
		return m.startBusy("Saving profile", func() tea.Msg {
			if err := svc.UpdateProfile(ctx, sess, p); err != nil {
				return infoMsg{err: err}
			}
			return infoMsg{text: fmt.Sprintf("Profile saved (name %q, voice %s).", p.Name, onOff(p.VoiceEnabled))}
		})

	case "upload":
		if c.arg == "" {
			m.fail(errors.New("usage: /upload <path>"))
			break
		}
		path := c.arg
		return m.startBusy("Indexing "+path, func() tea.Msg {
			res, err := svc.IngestFile(ctx, path)
			return uploadDoneMsg{res: res, err: err}
		})

	case "summarize", "summary":
		return m.startBusy("Summarizing", func() tea.Msg {
			out, err := svc.Summarize(ctx, sess)
			if err != nil {
				return infoMsg{err: err}
			}
			if out == "" {
				return infoMsg{text: "Nothing to summarize yet."}
			}
			return infoMsg{text: "**Summary**\n\n" + out, markdown: true}
		})

	case "search":
		query := c.arg
		return m.startBusy("Searching", func() tea.Msg {
			hits, err := svc.Search(ctx, query)
			if err != nil {
				return infoMsg{err: err}
			}
			if len(hits) == 0 {
				return infoMsg{text: "No results for " + query}
			}
			var b strings.Builder
			fmt.Fprintf(&b, "**Results for %s**\n\n", query)
			for i, h := range hits {
				fmt.Fprintf(&b, "%d. [%s](%s) %s\n", i+1, h.Title, h.URL, h.Snippet)
			}
			return infoMsg{text: b.String(), markdown: true}
		})

	case "feedback":
		text := c.arg
		return m.startBusy("Saving feedback", func() tea.Msg {
			if err := svc.RecordFeedback(ctx, text); err != nil {
				return infoMsg{err: err}
			}
			return infoMsg{text: "Thanks for the feedback."}
		})

	default:
		m.fail(fmt.Errorf("unknown command /%s, try /help", c.name))
	}
	m.status = m.statusLine()
	m.refresh()
	return m, nil
}

func (m *Model) info(text string) { m.add(roleInfo, text) }

func (m *Model) fail(err error) { m.add(roleError, err.Error()) }

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
