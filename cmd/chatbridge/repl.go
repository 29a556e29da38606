package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/mpetrov/chatbridge/internal/conversation"
	"github.com/mpetrov/chatbridge/internal/dialogue"
	"github.com/mpetrov/chatbridge/internal/dispatch"
	"github.com/mpetrov/chatbridge/internal/provider"
)

var (
	promptStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	replyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	reasoningStyle = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("245"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// userFacingError is shown for failed turns instead of raw transport
// detail; the turn leaves the conversation untouched.
const userFacingError = "Sorry, something went wrong talking to the model. Your conversation is unchanged — please try again."

// repl is the interactive chat surface. It is glue only: every semantic
// decision lives in the orchestrator and the store.
type repl struct {
	orch    *dialogue.Orchestrator
	disp    *dispatch.Dispatcher
	store   *conversation.Store
	userID  int64
	timeout time.Duration
}

func newREPL(orch *dialogue.Orchestrator, disp *dispatch.Dispatcher, store *conversation.Store, userID int64, timeout time.Duration) *repl {
	return &repl{orch: orch, disp: disp, store: store, userID: userID, timeout: timeout}
}

func (r *repl) run() error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	fmt.Println(infoStyle.Render("chatbridge — type /help for commands, /quit to exit"))

	for {
		sess := r.store.Get(r.userID)
		input, err := line.Prompt(promptStyle.Render(fmt.Sprintf("[%s] > ", sess.Provider)))
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.handleCommand(input); quit {
				return nil
			}
			continue
		}

		r.handleMessage(input)
	}
}

// handleCommand dispatches a slash command. Returns true on /quit.
func (r *repl) handleCommand(input string) bool {
	fields := strings.Fields(input)
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		r.printHelp()

	case "/switch":
		if len(args) != 1 {
			r.printError("usage: /switch <primary|reasoning>")
			break
		}
		p, err := provider.Parse(args[0])
		if err != nil {
			r.printError(err.Error())
			break
		}
		r.orch.SwitchProvider(r.userID, p)
		r.printInfo(fmt.Sprintf("switched to %s (%s)", p, r.store.Get(r.userID).Model))

	case "/model":
		sess := r.store.Get(r.userID)
		r.printInfo(fmt.Sprintf("provider: %s, model: %s, temperature: %.1f, max tokens: %d",
			sess.Provider, sess.Model, sess.Temperature, sess.MaxTokens))

	case "/temp":
		if len(args) == 0 {
			r.orch.AwaitInput(r.userID, conversation.PendingTemperature)
			r.printInfo("send the new temperature as your next message")
			break
		}
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			r.printError("temperature must be a number")
			break
		}
		r.orch.SetTemperature(r.userID, value)
		r.printInfo(fmt.Sprintf("temperature set to %.1f", value))

	case "/tokens":
		if len(args) == 0 {
			r.orch.AwaitInput(r.userID, conversation.PendingMaxTokens)
			r.printInfo("send the new max tokens as your next message")
			break
		}
		value, err := strconv.Atoi(args[0])
		if err != nil || value <= 0 {
			r.printError("max tokens must be a positive integer")
			break
		}
		r.orch.SetMaxTokens(r.userID, value)
		r.printInfo(fmt.Sprintf("max tokens set to %d", value))

	case "/system":
		if len(args) == 0 {
			r.orch.AwaitInput(r.userID, conversation.PendingSystemPrompt)
			r.printInfo("send the new system prompt as your next message")
			break
		}
		prompt := strings.TrimSpace(strings.TrimPrefix(input, "/system"))
		r.orch.SetSystemPrompt(r.userID, prompt)
		r.printInfo("system prompt updated")

	case "/stats":
		stats := r.orch.Stats(r.userID)
		for _, p := range provider.All() {
			r.printInfo(fmt.Sprintf("%s: %d tokens", p, stats[p]))
		}

	case "/reset":
		if len(args) != 1 {
			r.printError("usage: /reset <primary|reasoning>")
			break
		}
		p, err := provider.Parse(args[0])
		if err != nil {
			r.printError(err.Error())
			break
		}
		r.orch.ResetStats(r.userID, p)
		r.printInfo(fmt.Sprintf("%s stats reset", p))

	case "/clear":
		r.orch.Clear(r.userID)
		r.printInfo("conversation cleared")

	default:
		r.printError(fmt.Sprintf("unknown command %s — try /help", command))
	}

	return false
}

// handleMessage routes free text: either it resolves an armed pending
// input, or it becomes a chat turn.
func (r *repl) handleMessage(text string) {
	handled, err := r.orch.ResolvePending(r.userID, text)
	if handled {
		if err != nil {
			r.printError(err.Error())
		} else {
			r.printInfo("setting updated")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var reply provider.Reply
	err = r.disp.Do(ctx, r.userID, func(ctx context.Context) error {
		var turnErr error
		reply, turnErr = r.orch.Turn(ctx, r.userID, text)
		return turnErr
	})
	if errors.Is(err, dispatch.ErrRateLimited) {
		r.printError("slow down a little — too many messages")
		return
	}
	if err != nil {
		r.printError(userFacingError)
		return
	}

	if reply.Reasoning != "" {
		fmt.Println(reasoningStyle.Render("thinking: " + reply.Reasoning))
	}
	fmt.Println(replyStyle.Render(reply.Text))
}

func (r *repl) printHelp() {
	help := `commands:
  /switch <primary|reasoning>  select the provider
  /model                       show current provider and settings
  /temp [value]                set temperature (no value: prompt for it)
  /tokens [value]              set max tokens (no value: prompt for it)
  /system [text]               set the system prompt (no text: prompt for it)
  /stats                       show cumulative token usage
  /reset <primary|reasoning>   reset one provider's usage counter
  /clear                       drop history, settings and usage
  /quit                        exit`
	fmt.Println(infoStyle.Render(help))
}

func (r *repl) printInfo(msg string) {
	fmt.Println(infoStyle.Render(msg))
}

func (r *repl) printError(msg string) {
	fmt.Println(errorStyle.Render(msg))
}
