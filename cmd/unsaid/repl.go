package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/model"
	"github.com/hitoshi/unsaid/internal/usage"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// chatClient はREPLが使う送信と利用状況の取得。
type chatClient interface {
	Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
	Usage(ctx context.Context) (*usage.Summary, error)
}

type chatOptions struct {
	Mode       model.Mode
	PersonName string
}

// lineInput は1行ずつ入力を読む。
type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBasicLineInput(in io.Reader, out io.Writer) *basicLineInput {
	return &basicLineInput{reader: bufio.NewReader(in), out: out}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }

type readlineInput struct {
	instance *readline.Instance
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineInput) Close() error {
	return r.instance.Close()
}

// newLineInput は端末ならreadline、パイプやファイルなら素の行読み込みを返す。
func newLineInput(in *os.File, out io.Writer) (lineInput, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return newBasicLineInput(in, nil), nil
	}
	instance, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           in,
		Stdout:          out,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing line editor: %w", err)
	}
	return &readlineInput{instance: instance}, nil
}

const replHelp = `commands:
  /usage   show today's usage
  /help    show this help
  /quit    leave the conversation`

// runChat は入力が尽きるか/quitまで、1行ずつ送信して応答を表示する。
// 送信エラーは表示して続行する。
func runChat(ctx context.Context, client chatClient, in lineInput, out io.Writer, opts chatOptions) error {
	fmt.Fprintf(out, "%s mode. Type /help for commands.\n", opts.Mode.DefaultSessionTitle())

	sessionID := ""
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := in.ReadLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, replHelp)
			continue
		case "/usage":
			summary, err := client.Usage(ctx)
			if err != nil {
				fmt.Fprintln(out, describeError(err))
				continue
			}
			printUsage(out, summary)
			continue
		}

		res, err := client.Send(ctx, chat.SendRequest{
			Content:    line,
			Mode:       opts.Mode,
			SessionID:  sessionID,
			PersonName: opts.PersonName,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, describeError(err))
			continue
		}
		sessionID = res.Session.ID

		switch {
		case res.Reply != nil:
			fmt.Fprintf(out, "%s\n\n", res.Reply.Content)
		case res.ReplyDropped:
			fmt.Fprintln(out, "(reply discarded)")
		}
	}
}

func printUsage(w io.Writer, s *usage.Summary) {
	fmt.Fprintf(w, "Tier: %s\n", s.Tier)
	for _, m := range s.Modes {
		if m.Unlimited {
			fmt.Fprintf(w, "  %-8s %d (unlimited)\n", m.Mode, m.Count)
			continue
		}
		fmt.Fprintf(w, "  %-8s %d/%d\n", m.Mode, m.Count, m.Limit)
	}
	fmt.Fprintf(w, "Total: %d\n", s.Total)
}

// describeError はAPIErrorをメッセージと対処方法の1行にする。
func describeError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Action != "" {
			return fmt.Errorf("%s %s", apiErr.Message, apiErr.Action)
		}
		return errors.New(apiErr.Message)
	}
	return err
}
