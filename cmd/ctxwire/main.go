// Command ctxwire encodes and decodes conduit context wire fields. It is
// meant for debugging what travels between services.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/config"
	"github.com/goliatone/go-logger/glog"
)

type cli struct {
	Config  string `help:"Path to a conduit config file." type:"existingfile" optional:""`
	Verbose bool   `short:"v" help:"Log to stderr."`

	Encode      encodeCmd      `cmd:"" help:"Encode context entries into a wire field."`
	Decode      decodeCmd      `cmd:"" help:"Decode wire fields into context entries."`
	Headers     headersCmd     `cmd:"" help:"Print the headers a request would carry."`
	Traceparent traceparentCmd `cmd:"" help:"Print a traceparent for a trace id."`
	ID          idCmd          `cmd:"" name:"id" help:"Generate message ids."`
}

// env is bound into every command.
type env struct {
	cfg    config.Config
	logger conduit.Logger
	out    io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("ctxwire"),
		kong.Description("Inspect conduit context wire fields."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if kctx == nil || kctx.Command() == "" {
		return 0
	}

	e, err := newEnv(c, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if err := kctx.Run(e); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func newEnv(c cli, stdout, stderr io.Writer) (*env, error) {
	cfg := config.Default()
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var logger conduit.Logger = conduit.NopLogger{}
	if c.Verbose {
		logger = conduit.NewGlogLogger(glog.NewLogger(
			glog.WithWriter(stderr),
			glog.WithLevel("debug"),
		))
	}

	return &env{cfg: cfg, logger: logger, out: stdout}, nil
}
