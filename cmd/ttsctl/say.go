package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/spf13/cobra"
)

type sayOptions struct {
	format  string
	out     string
	cookie  string
	url     string
	timeout time.Duration
	verbose bool
}

func newSayCommand() *cobra.Command {
	opts := sayOptions{}

	cmd := &cobra.Command{
		Use:   "say [text]",
		Short: "Convert text to an audio file",
		Long:  "Convert text to an audio file. Reads the text from stdin when no argument or \"-\" is given.",
		Example: `  ttsctl say "你好" --out hello.mp3
  echo "hello" | ttsctl say --format wav --out hello.wav`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runSay(cmd.Context(), opts, text, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "mp3", "output format (mp3, wav, opus)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (defaults to stdout)")
	cmd.Flags().StringVar(&opts.cookie, "cookie", os.Getenv("DOUBAO_COOKIE"), "backend session cookie")
	cmd.Flags().StringVar(&opts.url, "url", os.Getenv("DOUBAO_WS_URL"), "backend websocket url")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 20*time.Second, "conversion timeout")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log connection events to stderr")

	return cmd
}

func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

func runSay(ctx context.Context, opts sayOptions, text string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	mgr, err := synthesis.New(synthesis.Config{
		URL:            opts.url,
		Cookie:         opts.cookie,
		RequestTimeout: opts.timeout,
	}, logger, nil)
	if err != nil {
		return err
	}
	defer mgr.Close()

	audio, err := mgr.Convert(ctx, text, opts.format)
	if err != nil {
		return err
	}

	if opts.out == "" {
		_, err = stdout.Write(audio)
		return err
	}
	if err := os.WriteFile(opts.out, audio, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	fmt.Fprintf(stderr, "wrote %d bytes to %s\n", len(audio), opts.out)
	return nil
}
