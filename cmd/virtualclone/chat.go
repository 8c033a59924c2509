package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/spf13/cobra"

	"github.com/hrygo/virtualclone/ai/conversation"
	"github.com/hrygo/virtualclone/ai/translate"
)

var (
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the clone in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, session, language, err := cliApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			return runChat(cmd.Context(), a.conversation, session, language, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, session, language, err := cliApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			reply, err := a.conversation.Chat(cmd.Context(), conversation.Request{
				SessionID: session,
				Message:   strings.Join(args, " "),
				Language:  language,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
			return nil
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{chatCmd, askCmd} {
		c.Flags().String("session", "", "session id to continue (default: a new session)")
		c.Flags().String("language", translate.English, "language tag of the conversation, e.g. spa_Latn")
	}
}

// cliApp wires the answering stack for a terminal command. Logs go to stderr
// at warn level unless VIRTUALCLONE_LOG_LEVEL says otherwise.
func cliApp(cmd *cobra.Command) (*app, string, string, error) {
	if os.Getenv("VIRTUALCLONE_LOG_LEVEL") == "" {
		_ = os.Setenv("VIRTUALCLONE_LOG_LEVEL", "warn")
	}
	p, err := loadProfile()
	if err != nil {
		return nil, "", "", err
	}
	setupLogger(p, os.Stderr)

	language, _ := cmd.Flags().GetString("language")
	if !translate.IsSupported(language) {
		return nil, "", "", fmt.Errorf("unsupported language %q, see /api/v1/languages", language)
	}
	session, _ := cmd.Flags().GetString("session")
	if session == "" {
		session = "cli:" + shortuuid.New()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, p)
	if err != nil {
		return nil, "", "", err
	}
	return a, session, language, nil
}

// runChat reads questions line by line until EOF or "exit". "/reset" starts over.
func runChat(ctx context.Context, conv *conversation.Service, session, language string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(out, `Ask me anything. Type "/reset" to start over or "exit" to quit.`)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			if err := conv.Reset(ctx, session); err != nil {
				return err
			}
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		reply, err := conv.Chat(ctx, conversation.Request{SessionID: session, Message: line, Language: language})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Response)
	}
}
