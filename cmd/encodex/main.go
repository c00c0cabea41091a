// Command encodex encodes and decodes messages from the terminal.
//
// Usage:
//
//	encodex encode [flags] text...
//	encodex decode [flags] envelope|share-link|qr-text
//	encodex detect [flags] text
//	encodex ledger [flags]
//
// Text is read from stdin when no argument is given or the argument is "-".
// By default the codec runs in-process with a bbolt ledger under --data-dir;
// --server sends every operation to a running encodex-server instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/snehjoshi/encodex/internal/codec"
	"github.com/snehjoshi/encodex/internal/config"
	"github.com/snehjoshi/encodex/internal/ledger"
	"github.com/snehjoshi/encodex/internal/share"
	"github.com/snehjoshi/encodex/internal/transform"
)

const usage = `usage: encodex <command> [flags] [text]

commands:
  encode   encode text into a shareable envelope
  decode   decode an envelope, share link or scanned QR text
  detect   guess how a text was encoded and rank candidate decodings
  ledger   list the self-destructing messages in the local ledger

run "encodex <command> -h" for command flags
`

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "encode":
		return a.encode(ctx, args[1:])
	case "decode":
		return a.decode(ctx, args[1:])
	case "detect":
		return a.detect(ctx, args[1:])
	case "ledger":
		return a.ledger(ctx, args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "encodex: unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// ─── shared flags ────────────────────────────────────────────────────────────

type commonFlags struct {
	configPath string
	dataDir    string
	ephemeral  bool
	server     string
	apiKey     string
	asJSON     bool
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "optional config file (ledger, share and self_destruct sections are used)")
	fs.StringVar(&c.dataDir, "data-dir", "", "directory for the local self-destruct ledger (overrides config)")
	fs.BoolVar(&c.ephemeral, "ephemeral", false, "keep the ledger in memory for this run only")
	fs.StringVar(&c.server, "server", "", "encodex-server base URL; when set nothing runs locally")
	fs.StringVar(&c.apiKey, "api-key", os.Getenv("ENCODEX_API_KEY"), "API key for --server")
	fs.BoolVar(&c.asJSON, "json", false, "print results as JSON")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging to stderr")
}

// open builds the backend selected by the flags.
func (c *commonFlags) open(ctx context.Context, stderr io.Writer) (backend, *config.Config, error) {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if c.server != "" {
		return newRemote(c.server, c.apiKey), cfg, nil
	}

	lc := cfg.Ledger
	switch {
	case c.ephemeral:
		lc.Backend = config.LedgerMemory
	case c.dataDir != "":
		lc.Backend = config.LedgerBolt
		lc.DataDir = c.dataDir
	case lc.Backend == config.LedgerBolt && c.configPath == "":
		if dir, err := os.UserConfigDir(); err == nil {
			lc.DataDir = filepath.Join(dir, "encodex")
		}
	}
	l, err := ledger.Open(ctx, lc)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	slog.Debug("local ledger", "backend", lc.Backend, "data_dir", lc.DataDir)
	return newLocal(l, cfg.Share.BaseURL, cfg.SelfDestruct.Countdown()), cfg, nil
}

// ─── encode ──────────────────────────────────────────────────────────────────

func (a *app) encode(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		common       commonFlags
		method       = fs.String("method", string(transform.MethodSubstitution), "transform: "+methodNames())
		shift        = fs.Int("shift", 0, "caesar shift 1-25 (default 3)")
		password     = fs.String("password", "", "protect with a password")
		key          = fs.String("key", "", "rotate with a custom key")
		selfDestruct = fs.Bool("self-destruct", false, "allow a single view")
		qrOut        = fs.String("qr", "", "also write a QR code PNG to this file")
		qrSize       = fs.Int("qr-size", 0, "QR code side in pixels (default from config)")
	)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	text, err := readText(fs.Args(), a.stdin)
	if err != nil {
		return a.fail(err)
	}

	b, cfg, err := common.open(ctx, a.stderr)
	if err != nil {
		return a.fail(err)
	}
	defer b.Close()

	m, err := transform.ParseMethod(*method)
	if err != nil {
		return a.fail(err)
	}
	res, err := b.Encode(ctx, codec.EncodeRequest{
		Text:         text,
		Method:       m,
		Shift:        *shift,
		CustomKey:    *key,
		Password:     *password,
		SelfDestruct: *selfDestruct,
	})
	if err != nil {
		return a.fail(err)
	}

	if *qrOut != "" {
		size := *qrSize
		if size == 0 {
			size = cfg.Share.QRSize
		}
		png, err := share.QRCode(res.Envelope, size)
		if err != nil {
			return a.fail(err)
		}
		if err := os.WriteFile(*qrOut, png, 0o644); err != nil {
			return a.fail(fmt.Errorf("write qr: %w", err))
		}
	}

	if common.asJSON {
		return a.printJSON(res)
	}
	fmt.Fprintln(a.stdout, res.Envelope)
	if res.ShareURL != "" {
		fmt.Fprintf(a.stderr, "share: %s\n", res.ShareURL)
	}
	if res.MessageID != "" {
		fmt.Fprintf(a.stderr, "single view: %s\n", res.MessageID)
	}
	return exitOK
}

// ─── decode ──────────────────────────────────────────────────────────────────

func (a *app) decode(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		common   commonFlags
		password = fs.String("password", "", "password for a protected message")
		key      = fs.String("key", "", "custom key")
		method   = fs.String("method", "", "method to assume when the text has no metadata")
		shift    = fs.Int("shift", 0, "caesar shift to assume when the text has no metadata")
		noWait   = fs.Bool("no-wait", false, "do not hold a self-destructing message on screen")
	)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	text, err := readText(fs.Args(), a.stdin)
	if err != nil {
		return a.fail(err)
	}
	if looksLikeURL(text) {
		if env, err := share.FromURL(text); err == nil {
			text = env
		}
	}

	req := codec.DecodeRequest{Text: text, Password: *password, CustomKey: *key, UseCustomKey: *key != "", Shift: *shift}
	if *method != "" {
		m, err := transform.ParseMethod(*method)
		if err != nil {
			return a.fail(err)
		}
		req.Method = m
	}

	b, _, err := common.open(ctx, a.stderr)
	if err != nil {
		return a.fail(err)
	}
	defer b.Close()

	res, err := b.Decode(ctx, req)
	if err != nil {
		return a.fail(err)
	}
	if common.asJSON {
		return a.printJSON(res)
	}

	fmt.Fprintln(a.stdout, res.Text)
	if res.Recovered {
		fmt.Fprintf(a.stderr, "recovered as %s\n", describe(res.Method, res.Shift))
	} else if res.Detected {
		fmt.Fprintf(a.stderr, "detected as %s\n", describe(res.Method, res.Shift))
	}
	if res.SelfDestruct && !*noWait {
		a.holdCountdown(ctx, res.DestructAfter)
	}
	return exitOK
}

// holdCountdown keeps a self-destructing message on screen for d, then says
// it is gone.
func (a *app) holdCountdown(ctx context.Context, d time.Duration) {
	fmt.Fprintf(a.stderr, "this message self-destructs in %s\n", d)
	expired := make(chan struct{})
	var cd codec.Countdown
	cd.Start(d, func() { close(expired) })
	select {
	case <-expired:
	case <-ctx.Done():
		cd.Stop()
	}
	fmt.Fprintln(a.stderr, "message destroyed")
}

// ─── detect ──────────────────────────────────────────────────────────────────

func (a *app) detect(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		common commonFlags
		top    = fs.Int("top", 5, "number of ranked candidates to print")
	)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	text, err := readText(fs.Args(), a.stdin)
	if err != nil {
		return a.fail(err)
	}

	// Detection needs no ledger.
	common.ephemeral = true
	b, _, err := common.open(ctx, a.stderr)
	if err != nil {
		return a.fail(err)
	}
	defer b.Close()

	d, err := b.Detect(ctx, text)
	if err != nil {
		return a.fail(err)
	}
	if *top >= 0 && len(d.Candidates) > *top {
		d.Candidates = d.Candidates[:*top]
	}
	if common.asJSON {
		return a.printJSON(d)
	}

	fmt.Fprintf(a.stdout, "method: %s (%s)\n", d.Method, d.Reason)
	if d.PasswordLikely {
		fmt.Fprintln(a.stdout, "password: likely")
	}
	for i, c := range d.Candidates {
		fmt.Fprintf(a.stdout, "%d. %-10s %.2f  %s\n", i+1, describe(c.Method, c.Shift), c.Confidence, c.Text)
	}
	return exitOK
}

// ─── ledger ──────────────────────────────────────────────────────────────────

func (a *app) ledger(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var (
		common  commonFlags
		pending = fs.Bool("pending", false, "only list messages not viewed yet")
	)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return parseExit(err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(a.stderr, "encodex: ledger takes no arguments")
		return exitUsage
	}

	b, _, err := common.open(ctx, a.stderr)
	if err != nil {
		return a.fail(err)
	}
	defer b.Close()

	recs, err := b.Records(ctx)
	if err != nil {
		return a.fail(err)
	}
	if *pending {
		kept := recs[:0]
		for _, r := range recs {
			if !r.Viewed {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	if common.asJSON {
		if recs == nil {
			recs = []record{}
		}
		return a.printJSON(recs)
	}
	for _, r := range recs {
		state := "pending"
		if r.Viewed {
			state = "viewed"
		}
		fmt.Fprintf(a.stdout, "%s  %-7s  %s\n", r.MessageID, state, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return exitOK
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// readText joins args, or reads stdin when there are none or the only one
// is "-". A single trailing newline from stdin is dropped.
func readText(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	if text == "" {
		return "", codec.ErrEmptyText
	}
	return text, nil
}

// parseExit maps a flag parse error to an exit code; -h is not a failure.
func parseExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	return exitUsage
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func describe(method string, shift int) string {
	if method == string(transform.MethodCaesar) {
		return fmt.Sprintf("caesar/%d", shift)
	}
	return method
}

func (a *app) printJSON(v any) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return a.fail(err)
	}
	return exitOK
}

// fail prints err with a hint for errors the user can fix.
func (a *app) fail(err error) int {
	fmt.Fprintf(a.stderr, "encodex: %v\n", err)
	switch {
	case errors.Is(err, codec.ErrPasswordRequired):
		fmt.Fprintln(a.stderr, "hint: pass --password")
	case errors.Is(err, codec.ErrCustomKeyRequired):
		fmt.Fprintln(a.stderr, "hint: pass --key")
	}
	return exitError
}
