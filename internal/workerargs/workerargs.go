// Package workerargs validates argument vectors against the probe worker's
// accepted flag schema. Validation runs before any process is spawned so a
// malformed request never creates a session.
package workerargs

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// knownPlugins is the set of probe plugins the worker binary ships.
var knownPlugins = map[string]bool{
	"http.basic":    true,
	"http.form":     true,
	"sql-injection": true,
	"ssh":           true,
	"ftp":           true,
	"smtp":          true,
	"imap":          true,
	"pop3":          true,
	"mysql":         true,
	"pgsql":         true,
	"mssql":         true,
	"ldap":          true,
	"telnet":        true,
	"vnc":           true,
	"rdp":           true,
}

// Options mirrors the worker binary's command line surface.
type Options struct {
	Plugin      string
	Target      string
	TargetsFile string
	Username    string
	Password    string
	Concurrency int
	TimeoutMS   int
	Retries     int
	RateLimit   int
	Output      string
	Quiet       bool
	Verbose     bool
}

// newFlagSet builds the worker flag schema bound to opts.
func newFlagSet(opts *Options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("probe-worker", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&opts.Target, "target", "T", "", "single target address")
	fs.StringVar(&opts.TargetsFile, "targets", "", "file with one target per line")
	fs.StringVarP(&opts.Username, "username", "U", "", "username or username wordlist")
	fs.StringVarP(&opts.Password, "password", "P", "", "password or password wordlist")
	fs.IntVarP(&opts.Concurrency, "concurrency", "c", 10, "concurrent tasks")
	fs.IntVar(&opts.TimeoutMS, "timeout", 5000, "per-attempt timeout in milliseconds")
	fs.IntVar(&opts.Retries, "retries", 3, "retries per attempt")
	fs.IntVar(&opts.RateLimit, "rate-limit", 0, "maximum requests per second, 0 for unlimited")
	fs.StringVarP(&opts.Output, "output", "o", "", "loot output file")
	fs.BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress raw output")
	fs.BoolVar(&opts.Verbose, "verbose", false, "verbose output")

	return fs
}

// Parse parses and validates argv, returning the resolved options.
func Parse(argv []string) (*Options, error) {
	opts := &Options{}
	fs := newFlagSet(opts)

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}

	positional := fs.Args()
	if len(positional) == 0 {
		return nil, fmt.Errorf("missing plugin name")
	}
	if len(positional) > 1 {
		return nil, fmt.Errorf("unexpected arguments after plugin: %s", strings.Join(positional[1:], " "))
	}

	opts.Plugin = positional[0]
	if !knownPlugins[opts.Plugin] {
		return nil, fmt.Errorf("unknown plugin %q", opts.Plugin)
	}

	if opts.Target == "" && opts.TargetsFile == "" {
		return nil, fmt.Errorf("either --target or --targets is required")
	}
	if opts.Concurrency <= 0 {
		return nil, fmt.Errorf("--concurrency must be positive, got %d", opts.Concurrency)
	}
	if opts.TimeoutMS <= 0 {
		return nil, fmt.Errorf("--timeout must be positive, got %d", opts.TimeoutMS)
	}
	if opts.Retries < 0 {
		return nil, fmt.Errorf("--retries must not be negative, got %d", opts.Retries)
	}
	if opts.RateLimit < 0 {
		return nil, fmt.Errorf("--rate-limit must not be negative, got %d", opts.RateLimit)
	}

	return opts, nil
}

// Validate checks argv against the worker schema without keeping the result.
func Validate(argv []string) error {
	_, err := Parse(argv)
	return err
}
