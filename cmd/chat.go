package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/artifact"
	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/i18n"
	"github.com/parleychat/parley/internal/transcript"
	"github.com/parleychat/parley/internal/voice"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: i18n.T("chat.description"),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if err := a.resumeConversation(ctx); err != nil {
		a.logger.Warn("resuming previous conversation", "error", err)
	}

	// Display welcome message
	fmt.Println(i18n.Sprintf("welcome", AppVersion))
	fmt.Println(i18n.T("welcome.help"))
	if conv := a.engine.Conversation(); conv != nil {
		fmt.Println(i18n.Sprintf("welcome.resumed", conv.Title))
	}
	fmt.Println()

	// Start conversation loop
	scanner := bufio.NewScanner(os.Stdin)
	// Long pasted prompts exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print(i18n.T("chat.prompt"))

		// Read user input
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf(i18n.T("error.input"), err)
			}
			// EOF (Ctrl+D)
			fmt.Println("\n" + i18n.T("goodbye"))
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		// Handle special commands
		if strings.HasPrefix(input, "/") {
			if handleChatCommand(ctx, a, input) {
				return nil
			}
			continue
		}

		// A dictated draft joins typed text before sending.
		if draft := a.engine.TakePendingInput(); draft != "" {
			input = draft + " " + input
		}
		sendQuery(ctx, a, input)
	}
}

// sendQuery runs one query/response round and prints the settled reply.
// A busy engine keeps the input as the pending draft instead of losing it.
func sendQuery(ctx context.Context, a *app, query string) {
	reply, err := a.engine.Send(ctx, query)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			a.engine.SetPendingInput(query)
			fmt.Println(i18n.T("chat.busy"))
			return
		}
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}

	printReply(reply)

	// Record the conversation so the next invocation resumes it.
	if err := transcript.SaveCurrentConversationID(a.engine.ConversationID()); err != nil {
		a.logger.Warn("saving conversation state", "error", err)
	}
}

// printReply renders a settled assistant message: reasoning trace first,
// then the body, generated attachments and extracted links.
func printReply(msg *transcript.Message) {
	if msg == nil {
		return
	}

	if len(msg.Trace) > 0 {
		fmt.Println(i18n.T("chat.trace.title"))
		for _, step := range msg.Trace {
			fmt.Println(i18n.Sprintf("chat.trace.item", step))
		}
	}

	fmt.Print(i18n.T("chat.assistant"))
	fmt.Println(msg.Text)
	if msg.Err != "" {
		fmt.Println(i18n.Sprintf("chat.error.event", msg.Err))
	}
	for _, att := range msg.Attachments {
		fmt.Println(i18n.Sprintf("chat.attachment", att.Kind, att.Name, att.URL))
	}
	for _, link := range msg.Links {
		fmt.Println(i18n.Sprintf("chat.link", link))
	}
	fmt.Println()
}

// handleChatCommand handles slash commands, returns true if should exit
func handleChatCommand(ctx context.Context, a *app, input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/help":
		printChatHelp()

	case "/new":
		if err := a.engine.Reset(); err != nil {
			fmt.Println(i18n.T("chat.busy"))
			break
		}
		if err := transcript.ClearCurrentConversationID(); err != nil {
			a.logger.Warn("clearing conversation state", "error", err)
		}
		fmt.Println(i18n.T("chat.new"))
		fmt.Println()

	case "/history":
		showHistory(ctx, a, strings.Join(parts[1:], " "))

	case "/image":
		stageFiles(ctx, a, api.UploadImage, parts[1:])

	case "/file":
		stageFiles(ctx, a, api.UploadFile, parts[1:])

	case "/staged":
		printStaged(a)

	case "/unstage":
		unstageFile(ctx, a, parts[1:])

	case "/clear":
		a.staging.Clear(ctx)
		fmt.Println(i18n.T("staged.cleared"))
		fmt.Println()

	case "/rag":
		handleRag(ctx, a, parts[1:])

	case "/voice":
		if len(parts) < 2 {
			fmt.Println(i18n.T("help.voice"))
			break
		}
		dictate(ctx, a, parts[1])

	case "/send":
		draft := a.engine.TakePendingInput()
		if draft == "" {
			fmt.Println(i18n.T("chat.draft.empty"))
			break
		}
		sendQuery(ctx, a, draft)

	case "/save":
		dir := "."
		if len(parts) > 1 {
			dir = parts[1]
		}
		saveArtifacts(ctx, a, dir)

	case "/lang":
		if len(parts) < 2 {
			fmt.Println(i18n.Sprintf("lang.current", i18n.GetLanguage()))
			fmt.Println(i18n.Sprintf("lang.available", strings.Join(i18n.GetSupportedLanguages(), ", ")))
		} else {
			lang := parts[1]
			if i18n.IsLanguageSupported(lang) {
				i18n.SetLanguage(lang)
				fmt.Println(i18n.Sprintf("lang.changed", lang))
			} else {
				fmt.Println(i18n.Sprintf("lang.unsupported", lang))
				fmt.Println(i18n.Sprintf("lang.available", strings.Join(i18n.GetSupportedLanguages(), ", ")))
			}
		}
		fmt.Println()

	case "/exit", "/quit":
		fmt.Println(i18n.T("goodbye"))
		return true

	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
		fmt.Println("Type /help to see available commands")
		fmt.Println()
	}

	return false
}

func printChatHelp() {
	fmt.Println(i18n.T("help.title"))
	fmt.Println("  " + i18n.T("help.help"))
	fmt.Println("  " + i18n.T("help.new"))
	fmt.Println("  " + i18n.T("help.history"))
	fmt.Println("  " + i18n.T("help.image"))
	fmt.Println("  " + i18n.T("help.file"))
	fmt.Println("  " + i18n.T("help.staged"))
	fmt.Println("  " + i18n.T("help.unstage"))
	fmt.Println("  " + i18n.T("help.clear"))
	fmt.Println("  " + i18n.T("help.rag"))
	fmt.Println("  " + i18n.T("help.voice"))
	fmt.Println("  " + i18n.T("help.send"))
	fmt.Println("  " + i18n.T("help.save"))
	fmt.Println("  " + i18n.T("help.lang"))
	fmt.Println("  " + i18n.T("help.exit"))
	fmt.Println("  " + i18n.T("help.ctrl_d"))
	fmt.Println()
}

// showHistory schedules a debounced refresh, waits for the cache to
// settle and prints the (possibly filtered) conversation list. A failed
// refresh falls back to whatever the cache already holds.
func showHistory(ctx context.Context, a *app, filter string) {
	a.history.Fetch(ctx, filter)

	wait := a.cfg.HistoryDebounce() + 5*time.Second
	select {
	case <-a.history.Updates():
	case <-time.After(wait):
		a.logger.Debug("history refresh timed out, showing cached records")
	}

	printHistoryRecords(a.history.Conversations())
	fmt.Println()
}

func stageFiles(ctx context.Context, a *app, kind api.UploadKind, paths []string) {
	if len(paths) == 0 {
		fmt.Println(i18n.T("help." + kindWord(kind)))
		return
	}
	slots, err := a.staging.AddPaths(ctx, kind, paths...)
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}
	fmt.Println(i18n.Sprintf("staged.added", len(slots)))
	fmt.Println()
}

func printStaged(a *app) {
	slots := a.staging.Snapshot()
	if len(slots) == 0 {
		fmt.Println(i18n.T("staged.empty"))
		fmt.Println()
		return
	}

	fmt.Println(i18n.T("staged.title"))
	idx := map[api.UploadKind]int{}
	for _, slot := range slots {
		idx[slot.Kind]++
		fmt.Println(i18n.Sprintf("staged.item",
			kindWord(slot.Kind),
			idx[slot.Kind],
			slot.Name,
			formatSize(slot.Size),
		))
	}
	fmt.Println()
}

func unstageFile(ctx context.Context, a *app, args []string) {
	if len(args) != 2 {
		fmt.Println(i18n.T("help.unstage"))
		return
	}

	var kind api.UploadKind
	switch args[0] {
	case "image", "images":
		kind = api.UploadImage
	case "file", "files":
		kind = api.UploadFile
	default:
		fmt.Println(i18n.T("help.unstage"))
		return
	}

	// Indexes are 1-based on screen.
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		fmt.Println(i18n.T("help.unstage"))
		return
	}

	if err := a.staging.Remove(ctx, kind, n-1); err != nil {
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}
	fmt.Println(i18n.T("staged.removed"))
	fmt.Println()
}

// handleRag lists knowledge bases or toggles the active set. Activation
// is a local choice; it only changes which names the next query carries.
func handleRag(ctx context.Context, a *app, args []string) {
	if len(args) == 0 {
		printCorpora(ctx, a)
		return
	}
	if len(args) != 2 {
		fmt.Println(i18n.T("help.rag"))
		return
	}

	name := args[1]
	switch args[0] {
	case "use":
		a.corpora.Activate(name)
		a.saveActiveCorpora()
		fmt.Println(i18n.Sprintf("rag.activated", name))
	case "drop":
		a.corpora.Deactivate(name)
		a.saveActiveCorpora()
		fmt.Println(i18n.Sprintf("rag.deactivated", name))
	default:
		fmt.Println(i18n.T("help.rag"))
	}
	fmt.Println()
}

func printCorpora(ctx context.Context, a *app) {
	corpora, err := a.corpora.List(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}
	if len(corpora) == 0 {
		fmt.Println(i18n.T("rag.empty"))
		fmt.Println()
		return
	}

	fmt.Println(i18n.T("rag.title"))
	for _, c := range corpora {
		mark := i18n.T("rag.inactive.mark")
		if c.Active {
			mark = i18n.T("rag.active.mark")
		}
		fmt.Println(i18n.Sprintf("rag.item", mark, c.Name, len(c.Files), c.CreatedAt))
	}
	fmt.Println()
}

// dictate replays a raw PCM capture through the voice pipeline and
// appends the transcription to the pending draft.
func dictate(ctx context.Context, a *app, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}
	defer f.Close()

	text, err := transcribeReader(ctx, a, f)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrNoSpeech):
			fmt.Println(i18n.T("voice.nospeech"))
		case errors.Is(err, voice.ErrPermissionDenied):
			fmt.Println(i18n.T("voice.denied"))
		default:
			fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		}
		return
	}

	draft := a.engine.AppendPendingInput(text)
	fmt.Println(i18n.Sprintf("voice.transcribed", text))
	fmt.Println(i18n.Sprintf("chat.draft", draft))
	fmt.Println()
}

// transcribeReader runs one full pipeline round over a PCM stream:
// start, drain, stop, confirm.
func transcribeReader(ctx context.Context, a *app, r io.Reader) (string, error) {
	rec := voice.NewFileRecorder(r)
	pipeline, err := voice.NewPipeline(voice.Config{
		Recorder:    rec,
		Transcriber: a.client,
		SampleRate:  a.cfg.SampleRate,
		Logger:      a.logger,
	})
	if err != nil {
		return "", err
	}

	if err := pipeline.Start(ctx); err != nil {
		return "", err
	}
	// Wait for the replay to finish; stopping earlier truncates it.
	select {
	case <-rec.Drained():
	case <-ctx.Done():
		_ = pipeline.Stop()
		return "", ctx.Err()
	}
	if err := pipeline.Stop(); err != nil {
		return "", err
	}
	return pipeline.Confirm(ctx)
}

// saveArtifacts downloads the generated files of the latest assistant
// reply into dir.
func saveArtifacts(ctx context.Context, a *app, dir string) {
	conv := a.engine.Conversation()
	if conv == nil {
		fmt.Println(i18n.T("save.none"))
		return
	}
	msg := conv.LastMessage()
	if msg == nil || msg.Role != transcript.RoleAssistant {
		fmt.Println(i18n.T("save.none"))
		return
	}

	store, err := artifact.NewStore(a.client, a.logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, i18n.Sprintf("chat.failed", err))
		return
	}

	saved, err := store.SaveMessage(ctx, msg, dir)
	for _, s := range saved {
		fmt.Println(i18n.Sprintf("save.saved", s.Path))
	}
	if err != nil {
		if errors.Is(err, artifact.ErrNoArtifacts) {
			fmt.Println(i18n.T("save.none"))
		} else {
			fmt.Fprintln(os.Stderr, i18n.Sprintf("save.failed", err))
		}
	}
	fmt.Println()
}

func kindWord(kind api.UploadKind) string {
	if kind == api.UploadImage {
		return "image"
	}
	return "file"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatSize formats a byte count in a human-readable form.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatTime formats time in a human-readable format
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
