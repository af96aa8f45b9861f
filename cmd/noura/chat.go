package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alwatan/noura/internal/orchestrator"
)

const chatCommands = `Type a question and press Enter. Lines starting with / are commands:

  /mic                      capture one spoken question (Enter sends it)
  /stop                     stop speaking and listening
  /replay N                 speak assistant message N again
  /login KIND [NAME]        log in as reviewer, manager or service_provider
  /logout                   log out
  /reset                    start a new conversation
  /quit                     exit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long:  "Chat opens an interactive conversation with the assistant.\n\n" + chatCommands,
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.startMetrics(); err != nil {
		return err
	}

	out := newTranscript(cmd.OutOrStdout(), a.persona.Name)
	fmt.Fprintln(cmd.OutOrStdout(), bannerStyle.Render(a.persona.Name+" · "+a.persona.Office))
	fmt.Fprintln(cmd.OutOrStdout(), statusStyle.Render("output: "+a.output+"  ·  /help for commands"))

	a.orch.OnChange(out.Render)
	a.capture.OnStateChange(func(listening bool) {
		if listening {
			out.Status("🎤 أستمع...")
		}
	})
	out.Render(a.orch.Snapshot())

	s := &chatSession{app: a, out: out}
	return s.loop(ctx, cmd.InOrStdin())
}

// chatSession runs the read-eval loop of the chat command
type chatSession struct {
	app     *app
	out     *transcript
	pending sync.WaitGroup
	started bool
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	defer s.pending.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether to exit
func (s *chatSession) handle(ctx context.Context, line string) bool {
	if !s.started {
		s.started = true
		s.app.orch.FirstInteraction()
	}

	name, args, isCommand := parseCommand(line)
	if !isCommand {
		s.submit(ctx, line)
		return false
	}

	orch := s.app.orch
	switch name {
	case "quit", "exit":
		return true
	case "help":
		s.out.Status("%s", chatCommands)
	case "mic":
		if !s.app.capture.Available() {
			s.out.Error(errors.New("speech input is disabled: set DEEPGRAM_API_KEY"))
			return false
		}
		s.app.capture.Start()
	case "stop":
		s.app.speaker.Stop()
		s.app.capture.Stop()
	case "replay":
		index, err := parseIndex(args)
		if err == nil {
			err = orch.Replay(index)
		}
		if err != nil {
			s.out.Error(err)
		}
	case "login":
		user, err := parseLogin(args)
		if err == nil {
			err = orch.Login(user)
		}
		if err != nil {
			s.out.Error(err)
		}
	case "logout":
		if err := orch.Logout(); err != nil {
			s.out.Error(err)
		}
	case "reset":
		orch.ResetConversation()
	default:
		s.out.Error(fmt.Errorf("unknown command /%s", name))
	}
	return false
}

// submit sends typed text, or the pending spoken input when the line is
// blank, without blocking the input loop
func (s *chatSession) submit(ctx context.Context, line string) {
	orch := s.app.orch
	if orch.Snapshot().Loading {
		s.out.Status("لحظة، ما زلت أجهز الرد السابق")
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if strings.TrimSpace(line) == "" {
			orch.SubmitPending(ctx)
			return
		}
		orch.SubmitUserMessage(ctx, line)
	}()
}

// parseCommand splits "/name arg..." into its parts
func parseCommand(line string) (name string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", nil, false
	}
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func parseIndex(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: /replay N")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid message number %q", args[0])
	}
	return index, nil
}

func parseLogin(args []string) (orchestrator.User, error) {
	if len(args) == 0 {
		return orchestrator.User{}, errors.New("usage: /login reviewer|manager|service_provider [name]")
	}
	kind, err := orchestrator.ParseUserKind(args[0])
	if err != nil {
		return orchestrator.User{}, err
	}
	return orchestrator.User{Kind: kind, Name: strings.Join(args[1:], " ")}, nil
}
