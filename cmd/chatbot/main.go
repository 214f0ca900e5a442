// Package main provides the chatbot CLI: an interactive multilingual chat
// TUI plus one-shot subcommands over the same service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatbot/internal/audio"
	"chatbot/internal/config"
	"chatbot/internal/domain"
	"chatbot/internal/logger"
	"chatbot/internal/service"
	"chatbot/internal/session"
	"chatbot/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Multilingual chat assistant with document answers and voice",
	Long: `chatbot talks to you in your language. Input is translated to a pivot
language, answered by the selected model (optionally from uploaded documents)
and translated back. Without a subcommand it starts the interactive chat.`,
	SilenceUsage: true,
	RunE:         runChat,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Ask one question and print the answer",
	Long: `Ask one question and print the answer. With --listen the question is
recorded from the microphone for the given time and transcribed.`,
	RunE: runAsk,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Index pdf, txt or docx files",
	Long: `Index documents into the configured vector store. With the memory store the
index lives only for this process; use qdrant or pgvector to keep it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the stored conversation",
	Args:  cobra.NoArgs,
	RunE:  runSummarize,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <text>",
	Short: "Leave feedback",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFeedback,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update the user profile",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to YAML config file (default ./config.yaml, then ~/.config/chatbot/config.yaml)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-file", "", "Write logs to file instead of stderr")
	pf.String("session", "", "Session ID (default from config)")
	for _, name := range []string{"config", "log-level", "log-file", "session"} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("CHATBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	askCmd.Flags().String("lang", "", "Language of the question and answer")
	askCmd.Flags().String("model", "", "Model ID")
	askCmd.Flags().StringSlice("file", nil, "Index these files first and answer from them")
	askCmd.Flags().Duration("listen", 0, "Record the question from the microphone for this long")

	profileCmd.Flags().String("name", "", "Your name")
	profileCmd.Flags().String("lang", "", "Preferred language")
	profileCmd.Flags().Bool("voice", false, "Speak replies aloud in the chat")

	rootCmd.AddCommand(chatCmd, askCmd, ingestCmd, summarizeCmd, feedbackCmd, profileCmd, searchCmd)

	cobra.OnInitialize(func() { _ = godotenv.Load() })
}

// loadConfig reads the config and configures logging. Flags and CHATBOT_*
// env vars win over the config file.
func loadConfig(defaultLogFile string) (*config.AppConfig, error) {
	var (
		cfg  *config.AppConfig
		path = viper.GetString("config")
		err  error
	)
	if path == "" {
		cfg, path, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := firstSet(viper.GetString("log-level"), cfg.Log.Level)
	file := firstSet(viper.GetString("log-file"), cfg.Log.File, defaultLogFile)
	logger.Configure(level, file)
	logger.Debug("Config loaded", "path", path)
	return cfg, nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// open loads config, builds the app and restores the session.
func open(ctx context.Context, withAudio bool, defaultLogFile string) (*app, *session.Session, error) {
	cfg, err := loadConfig(defaultLogFile)
	if err != nil {
		return nil, nil, err
	}
	a, err := buildApp(ctx, cfg, withAudio)
	if err != nil {
		return nil, nil, err
	}
	id := firstSet(viper.GetString("session"), cfg.Session.ID)
	sess, err := a.sessions.Get(ctx, id)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, sess, nil
}

func closeApp(a *app) {
	if err := a.Close(); err != nil {
		logger.Warn("Shutdown", "error", err)
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	// the TUI owns the terminal, so logs go to a file unless told otherwise
	logFile := filepath.Join(os.TempDir(), "chatbot.log")
	a, sess, err := open(ctx, true, logFile)
	if err != nil {
		return err
	}
	defer closeApp(a)

	opts := tui.Options{Models: a.cfg.ModelIDs(), Languages: a.cfg.Translation.Languages}
	if a.speaker != nil {
		opts.Recorder = audio.NewRecorder(time.Duration(a.cfg.Voice.MaxRecordingSecs) * time.Second)
	}
	logger.Info("Starting chat", "session", sess.ID, "model", sess.Snapshot().ModelID)
	_, err = tea.NewProgram(tui.New(ctx, a.chat, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	listen, _ := cmd.Flags().GetDuration("listen")
	if listen <= 0 && len(args) == 0 {
		return errors.New("ask needs a question or --listen")
	}
	a, sess, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	files, _ := cmd.Flags().GetStringSlice("file")
	for _, f := range files {
		res, err := a.chat.IngestFile(ctx, f)
		if err != nil {
			return err
		}
		logger.Info("Indexed", "file", res.Name, "chunks", res.Chunks)
	}
	lang, _ := cmd.Flags().GetString("lang")
	if lang != "" && !a.cfg.KnownLanguage(lang) {
		return fmt.Errorf("unknown language %q (known: %s)", lang, strings.Join(a.cfg.Translation.Languages, ", "))
	}
	modelID, _ := cmd.Flags().GetString("model")
	req := service.TurnRequest{
		Input:        strings.Join(args, " "),
		Language:     lang,
		ModelID:      modelID,
		UseDocuments: a.chat.DocumentCount() > 0,
	}

	var res service.TurnResult
	if listen > 0 {
		if a.voice == nil {
			return fmt.Errorf("%w: voice input is not configured", domain.ErrRecognition)
		}
		clip, err := record(ctx, listen, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		var text string
		text, res, err = a.chat.HandleVoiceTurn(ctx, sess, clip, req)
		if text != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "You said:", text)
		}
		if err != nil {
			return err
		}
	} else if res, err = a.chat.HandleTurn(ctx, sess, req); err != nil {
		return err
	}
	if res.Warning != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", res.Warning)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Response)
	return nil
}

// record captures d of microphone audio.
func record(ctx context.Context, d time.Duration, status io.Writer) (domain.Audio, error) {
	if err := audio.Initialize(); err != nil {
		return domain.Audio{}, fmt.Errorf("%w: audio device: %w", domain.ErrRecognition, err)
	}
	defer func() { _ = audio.Terminate() }()

	capCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	fmt.Fprintf(status, "Listening for %s...\n", d)
	clip, err := audio.NewRecorder(d).Capture(capCtx)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("%w: %w", domain.ErrRecognition, err)
	}
	logger.Debug("Recorded", "duration", clip.Duration())
	return clip, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	for _, path := range args {
		res, err := a.chat.IngestFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks (source %s)\n", res.Name, res.Chunks, res.SourceID)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, sess, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	out, err := a.chat.Summarize(ctx, sess)
	if err != nil {
		return err
	}
	if out == "" {
		out = "Nothing to summarize yet."
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.chat.RecordFeedback(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Thanks for the feedback.")
	return nil
}

func runProfile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, sess, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	p := sess.Snapshot().Profile
	flags := cmd.Flags()
	if flags.Changed("name") || flags.Changed("lang") || flags.Changed("voice") {
		if flags.Changed("name") {
			p.Name, _ = flags.GetString("name")
		}
		if flags.Changed("lang") {
			p.PreferredLanguage, _ = flags.GetString("lang")
		}
		if flags.Changed("voice") {
			p.VoiceEnabled, _ = flags.GetBool("voice")
		}
		if err := a.chat.UpdateProfile(ctx, sess, p); err != nil {
			return err
		}
		p = sess.Snapshot().Profile
	}
	fmt.Fprintf(cmd.OutOrStdout(), "name: %s\nlanguage: %s\nvoice: %t\n", p.Name, p.PreferredLanguage, p.VoiceEnabled)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, _, err := open(ctx, false, "")
	if err != nil {
		return err
	}
	defer closeApp(a)

	hits, err := a.chat.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n   %s\n", i+1, h.Title, h.URL, h.Snippet)
	}
	return nil
}
