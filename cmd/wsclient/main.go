package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	wsclient "github.com/bionicotaku/lingo-utils-wsclient"
)

const usage = `usage: wsclient [global flags] <command> [flags] [args]

commands:
  token                 sign a JWT from the configured claims and print it
  verify <token>        check a JWT signature and print its claims
  get [sub-service]     GET serviceName+sub-service (-q key=value, repeatable)
  post [sub-service]    POST -d body to serviceName+sub-service
  put [sub-service]     PUT -d body to serviceName+sub-service

global flags:
`

// Exit codes by failure kind.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUnauthorized = 2
	exitConnection   = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	cfg    config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("wsclient", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	envPath := global.String("env", defaultEnvPath(), "path to .env file (env WSCLIENT_ENV_FILE)")
	baseURL := global.String("base-url", "", "web service base URL (env WSCLIENT_BASE_URL)")
	service := global.String("service", "", "service name (env WSCLIENT_SERVICE)")
	token := global.String("token", "", "session token (env WSCLIENT_SESSION_TOKEN)")
	timeout := global.Duration("timeout", 0, "HTTP timeout (env WSCLIENT_TIMEOUT)")
	verbose := global.Bool("v", false, "debug logging")
	if err := global.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := loadConfig(*envPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	global.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = *baseURL
		case "service":
			cfg.Service = *service
		case "token":
			cfg.SessionToken = *token
		case "timeout":
			cfg.Timeout = *timeout
		}
	})
	cfg.normalize()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	c := &cli{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
		stdout: stdout,
		stderr: stderr,
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return exitFailure
	}
	command, rest := rest[0], rest[1:]
	switch command {
	case "token":
		return c.token(rest)
	case "verify":
		return c.verify(rest)
	case "get", "post", "put":
		return c.request(command, rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		global.Usage()
		return exitFailure
	}
}

func (c *cli) builderFlags(fs *flag.FlagSet) func() (*wsclient.TokenBuilder, error) {
	alg := fs.String("alg", c.cfg.Algorithm, "signing algorithm: HS256, HS384, HS512, RS256")
	key := fs.String("key", c.cfg.KeyPath, "signing key path")
	iss := fs.String("iss", c.cfg.Issuer, "issuer claim")
	sub := fs.String("sub", c.cfg.Subject, "subject claim")
	ttl := fs.Duration("ttl", c.cfg.TTL, "token lifetime")
	var extra pairs
	fs.Var(&extra, "claim", "extra claim key=value (repeatable)")

	return func() (*wsclient.TokenBuilder, error) {
		algorithm, err := wsclient.ParseAlgorithm(*alg)
		if err != nil {
			return nil, err
		}
		claims := wsclient.NewClaims(*iss, *sub, *ttl)
		extra.each(func(k, v string) { claims[k] = v })
		return wsclient.NewTokenBuilder(claims, algorithm, *key, wsclient.WithLogger(c.logger)), nil
	}
}

func (c *cli) token(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	newBuilder := c.builderFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	builder, err := newBuilder()
	if err != nil {
		return c.fail(err)
	}
	signed, err := builder.Sign()
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, signed)
	return exitOK
}

func (c *cli) verify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	alg := fs.String("alg", c.cfg.Algorithm, "signing algorithm")
	key := fs.String("key", c.cfg.KeyPath, "verification key path (HMAC secret or RSA PEM)")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "verify: exactly one token argument required")
		return exitFailure
	}
	algorithm, err := wsclient.ParseAlgorithm(*alg)
	if err != nil {
		return c.fail(err)
	}
	verifier, err := wsclient.NewVerifier(algorithm, *key)
	if err != nil {
		return c.fail(err)
	}
	claims, err := verifier.Verify(fs.Arg(0))
	if err != nil {
		return c.fail(err)
	}
	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, string(out))
	return exitOK
}

func (c *cli) request(method string, args []string) int {
	fs := flag.NewFlagSet(method, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var query pairs
	if method == "get" {
		fs.Var(&query, "q", "query parameter key=value (repeatable, order kept)")
	}
	data := fs.String("d", "", "JSON body, or @path to read it from a file")
	newBuilder := c.builderFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}
	subService := ""
	if fs.NArg() > 0 {
		subService = fs.Arg(0)
	}

	body, err := readBody(*data)
	if err != nil {
		return c.fail(err)
	}

	gw, err := wsclient.NewGateway(wsclient.GatewayConfig{
		BaseURL:     c.cfg.BaseURL,
		ServiceName: c.cfg.Service,
		Accept:      c.cfg.Accept,
		ContentType: c.cfg.ContentType,
		HTTPTimeout: c.cfg.Timeout,
		Logger:      c.logger,
	})
	if err != nil {
		return c.fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout+5*time.Second)
	defer cancel()

	source, err := c.tokenSource(ctx, newBuilder)
	if err != nil {
		return c.fail(err)
	}
	session := wsclient.NewSession(gw, source)

	var resp *wsclient.Response
	switch method {
	case "get":
		params := wsclient.NewParams()
		query.each(func(k, v string) { params.Set(k, v) })
		resp, err = session.Get(ctx, subService, params, body)
	case "post":
		resp, err = session.Post(ctx, subService, body)
	case "put":
		resp, err = session.Put(ctx, subService, body)
	}
	if err != nil {
		return c.fail(err)
	}
	return c.print(resp)
}

// tokenSource picks, in order: an explicit session token, a Google identity token
// for the configured audience, or a JWT signed with the configured key.
func (c *cli) tokenSource(ctx context.Context, newBuilder func() (*wsclient.TokenBuilder, error)) (oauth2.TokenSource, error) {
	switch {
	case c.cfg.SessionToken != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.cfg.SessionToken}), nil
	case c.cfg.Audience != "":
		var opts []wsclient.IDTokenOption
		if c.cfg.ServiceAccount != "" {
			opts = append(opts, wsclient.WithServiceAccount(c.cfg.ServiceAccount), wsclient.WithIncludeEmail(true))
		}
		return wsclient.NewIDTokenSource(ctx, c.cfg.Audience, opts...)
	default:
		builder, err := newBuilder()
		if err != nil {
			return nil, err
		}
		if builder.KeyPath() == "" {
			return nil, errors.New("no session token: set -token, WSCLIENT_ID_TOKEN_AUDIENCE or a signing key")
		}
		return builder, nil
	}
}

func readBody(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	raw := []byte(data)
	if path, ok := strings.CutPrefix(data, "@"); ok {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	if !json.Valid(raw) {
		return nil, errors.New("body is not valid JSON")
	}
	return json.RawMessage(bytes.TrimSpace(raw)), nil
}

func (c *cli) print(resp *wsclient.Response) int {
	if len(resp.Body) == 0 {
		return exitOK
	}
	var out bytes.Buffer
	if err := json.Indent(&out, resp.Body, "", "  "); err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.stdout, out.String())
	return exitOK
}

func (c *cli) fail(err error) int {
	var e *wsclient.Error
	if !errors.As(err, &e) {
		fmt.Fprintf(c.stderr, "error: %v\n", err)
		return exitFailure
	}
	indicator, _ := json.Marshal(e.Indicator())
	fmt.Fprintln(c.stderr, string(indicator))
	c.logger.Debug("request failed", slog.String("code", string(e.Code)), slog.Any("error", err))
	switch e.Kind {
	case wsclient.KindUnauthorized:
		return exitUnauthorized
	case wsclient.KindConnection:
		return exitConnection
	default:
		return exitFailure
	}
}
