// Command parley is a thin interactive view over the chat session
// controller. It renders session state and forwards intents; it owns no
// conversation logic of its own.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/youruser/parley/internal/api"
	"github.com/youruser/parley/internal/config"
	"github.com/youruser/parley/internal/ingest"
	"github.com/youruser/parley/internal/logging"
	"github.com/youruser/parley/internal/session"
)

var log = logging.Get()

var (
	promptColor    = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgCyan)
	reasoningColor = color.New(color.Faint)
	errorColor     = color.New(color.FgRed)
	infoColor      = color.New(color.FgYellow)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	client := api.NewClient(cfg.BackendURL, time.Duration(*cfg.RequestTimeoutSeconds)*time.Second)
	ctrl := session.NewController(client, session.Options{
		HistoryPairs:    *cfg.HistoryPairs,
		UploadThreshold: *cfg.UploadThresholdBytes,
	})

	log.Info("parley starting, backend %s", cfg.BackendURL)
	if err := run(context.Background(), ctrl, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

// run drives the read-eval loop. Split from main so tests can feed scripted
// input and capture output.
func run(ctx context.Context, ctrl *session.Controller, in io.Reader, out io.Writer) error {
	infoColor.Fprintln(out, "parley: type a message, /help for commands")

	if err := ctrl.RefreshModels(ctx); err != nil {
		errorColor.Fprintf(out, "%s\n", ctrl.State().LastError)
	} else if st := ctrl.State(); st.Models.Selected != "" {
		infoColor.Fprintf(out, "model: %s (%d available)\n", st.Models.Selected, len(st.Models.Available))
	} else {
		infoColor.Fprintln(out, "no models available yet; sending is disabled")
	}

	rendered := len(ctrl.State().Messages)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	promptColor.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			// ignore
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/help":
			printHelp(out)
		case line == "/models":
			printModels(out, ctrl.State().Models)
		case strings.HasPrefix(line, "/model "):
			ctrl.SelectModel(strings.TrimSpace(strings.TrimPrefix(line, "/model ")))
			infoColor.Fprintf(out, "model: %s\n", ctrl.State().Models.Selected)
		case strings.HasPrefix(line, "/attach "):
			paths := strings.Fields(strings.TrimPrefix(line, "/attach "))
			handles := make([]ingest.Handle, 0, len(paths))
			for _, p := range paths {
				handles = append(handles, ingest.PathHandle(p))
			}
			if err := ctrl.AttachFiles(ctx, handles); err != nil {
				errorColor.Fprintf(out, "attach failed: %v\n", err)
			}
			rendered = renderNew(out, ctrl, rendered)
		case line == "/clear":
			ctrl.Clear()
			rendered = 0
			infoColor.Fprintln(out, "session cleared")
		case line == "/tokens":
			infoColor.Fprintf(out, "~%d tokens in the next request\n", ctrl.EstimateTokens())
		default:
			ctrl.SetDraft(line)
			if err := ctrl.Send(ctx); err != nil {
				reportSendError(out, ctrl, err)
			}
			rendered = renderNew(out, ctrl, rendered)
		}
		promptColor.Fprint(out, "> ")
	}
	return scanner.Err()
}

func reportSendError(out io.Writer, ctrl *session.Controller, err error) {
	if errors.Is(err, session.ErrNothingToSend) {
		return // silent no-op, matches the controller's precondition policy
	}
	if msg := ctrl.State().LastError; msg != "" {
		errorColor.Fprintf(out, "%s\n", msg)
	}
}

// renderNew prints messages appended since the last render and returns the
// new high-water mark.
func renderNew(out io.Writer, ctrl *session.Controller, since int) int {
	msgs := ctrl.State().Messages
	if since > len(msgs) {
		since = 0 // log was reset under us
	}
	for _, m := range msgs[since:] {
		switch {
		case m.Hidden:
			// never rendered
		case m.Error != "":
			errorColor.Fprintf(out, "%s - %s\n", m.Content, m.Error)
		case m.Role == session.RoleAssistant:
			if m.Reasoning != "" {
				reasoningColor.Fprintf(out, "(reasoning) %s\n", m.Reasoning)
			}
			assistantColor.Fprintf(out, "%s\n", m.Content)
		default:
			fmt.Fprintf(out, "you: %s\n", m.Content)
		}
	}
	return len(msgs)
}

func printModels(out io.Writer, models session.ModelState) {
	if models.Loading {
		infoColor.Fprintln(out, "model list is still loading")
		return
	}
	if len(models.Available) == 0 {
		infoColor.Fprintln(out, "no models available")
		return
	}
	for _, m := range models.Available {
		marker := "  "
		if m == models.Selected {
			marker = "* "
		}
		fmt.Fprintf(out, "%s%s\n", marker, m)
	}
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `commands:
  /models          list available models
  /model <id>      select a model
  /attach <path>…  attach files to the next message
  /tokens          estimate the next request's token count
  /clear           reset the session
  /quit            exit
anything else is sent as a message
`)
}
