package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/germanamz/promptforge/pkg/chats/attachment"
	"github.com/germanamz/promptforge/pkg/chats/message"
	"github.com/germanamz/promptforge/pkg/chats/role"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func runCall(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("call", "Send a prompt to a configured model and print the reply.\n"+
		"The prompt is taken from the arguments, or from stdin when none are given.", stderr)

	var common commonFlags
	common.register(fs)
	providerID := fs.String("provider", "", "provider id (default: picked on a terminal, else first enabled provider)")
	modelID := fs.String("model", "", "model id (default: first enabled model of the provider)")
	system := fs.String("system", "", "system prompt")
	stream := fs.Bool("stream", false, "print the reply as it arrives")
	render := fs.Bool("render", false, "render the reply as markdown (not with --stream)")
	var attachments listFlag
	fs.Var(&attachments, "attach", "attach a file (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *stream && *render {
		return errors.New("--render cannot be combined with --stream")
	}

	prompt, err := readPrompt(fs.Args(), stdin)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, common, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	pid, mid := *providerID, *modelID
	if pid == "" && isTerminal(stdin) && isTerminal(stderr) {
		if pid, mid, err = pickTarget(ctx, a.cfg, mid, stdin, stderr); err != nil {
			return err
		}
	}

	p, model, err := resolveTarget(a.cfg, pid, mid)
	if err != nil {
		return err
	}

	msgs, err := buildMessages(*system, prompt, attachments)
	if err != nil {
		return err
	}

	var onChunk func(string)
	if *stream {
		onChunk = func(chunk string) { fmt.Fprint(stdout, chunk) }
	}

	reply, err := a.gw.Call(ctx, msgs, p, model, *stream, onChunk)
	if err != nil {
		if *stream {
			fmt.Fprintln(stdout)
		}
		return err
	}

	switch {
	case *stream:
		fmt.Fprintln(stdout)
	case *render:
		fmt.Fprintln(stdout, renderMarkdown(newMarkdownRenderer(terminalWidth(stdout)), reply))
	default:
		fmt.Fprintln(stdout, reply)
	}

	if summary, ok := a.gw.Usage(p, model); ok && summary.Calls > 0 {
		fmt.Fprintln(stderr, dimStyle.Render(fmtUsage(summary)))
	}
	return nil
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if isTerminal(stdin) {
		return "", errors.New("no prompt given, pass it as arguments or on stdin")
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("empty prompt")
	}
	return prompt, nil
}

func buildMessages(system, prompt string, paths []string) ([]message.Message, error) {
	var msgs []message.Message
	if system != "" {
		msgs = append(msgs, message.NewText(role.System, system))
	}

	user := message.NewText(role.User, prompt)
	if len(paths) > 0 {
		atts := make([]attachment.Attachment, 0, len(paths))
		for _, path := range paths {
			att, err := readAttachment(path)
			if err != nil {
				return nil, err
			}
			atts = append(atts, att)
		}
		user = user.WithAttachments(atts...)
	}

	return append(msgs, user), nil
}

func readAttachment(path string) (attachment.Attachment, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-selected file
	if err != nil {
		return attachment.Attachment{}, fmt.Errorf("attach: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return attachment.Attachment{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}

// terminalWidth returns the width of w when it is a terminal, otherwise 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd())) //nolint:gosec
	if err != nil {
		return 0
	}
	return width
}
