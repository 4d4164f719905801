package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/embermind/aura/core/domain"
	"github.com/spf13/cobra"
)

var (
	chatUser  string
	chatMode  string
	chatVoice bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant",
	Long: `Start an interactive session with the assistant.

In-session commands:
  /suggest [query]   - ask for proactive suggestions
  /mode <mode>       - switch session mode (passive|reactive|proactive|predictive)
  /quit              - end the session and exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "local", "user id for the session")
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", "", "session mode (defaults to configured mode)")
	chatCmd.Flags().BoolVar(&chatVoice, "voice", false, "voice-optimize suggestions")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	mode := domain.Mode(chatMode)
	if chatMode == "" {
		mode = domain.Mode(app.config.Get().Session.DefaultMode)
	}
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q", chatMode)
	}

	if _, err := app.orch.StartSession(chatUser, mode); err != nil {
		return err
	}
	defer app.orch.EndSession(chatUser)

	fmt.Printf("aura chat (%s mode) - /quit to exit\n", mode)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runChatCommand(ctx, app, line); quit {
				break
			}
			continue
		}

		resp, err := app.orch.ProcessMessage(ctx, chatUser, line, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(resp.Content)
		if len(resp.Workers) > 0 {
			fmt.Printf("  [%s, confidence %.2f]\n", strings.Join(resp.Workers, "+"), resp.Confidence)
		}

		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// runChatCommand handles slash commands. Returns true when the session
// should end.
func runChatCommand(ctx context.Context, app *app, line string) bool {
	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true
	case "/suggest":
		suggestions := app.orch.Suggestions(ctx, chatUser, arg, chatVoice)
		if len(suggestions) == 0 {
			fmt.Println("no suggestions right now")
			return false
		}
		for _, s := range suggestions {
			fmt.Printf("- [%s/%s] %s\n", s.Type, s.Priority, s.Content)
		}
	case "/mode":
		mode := domain.Mode(arg)
		if !mode.Valid() {
			fmt.Fprintf(os.Stderr, "invalid mode %q\n", arg)
			return false
		}
		if _, err := app.orch.StartSession(chatUser, mode); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}
		fmt.Printf("mode set to %s\n", mode)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", parts[0])
	}
	return false
}
