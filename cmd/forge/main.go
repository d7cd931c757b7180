// Command forge is the CLI entrypoint: parses flags, loads the inventory
// and playbook, runs each play, and prints a per-host/per-task summary.
//
// Grounded on the teacher's cmd/spot/main.go (go-flags option struct
// shape, go-pkgz/lgr debug logging setup, SIGINT/SIGTERM-aware context).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"github.com/pelletier/go-toml/v2"

	"github.com/alexisbouchez/forge/pkg/executor"
	"github.com/alexisbouchez/forge/pkg/inventory"
	"github.com/alexisbouchez/forge/pkg/modules"
	"github.com/alexisbouchez/forge/pkg/play"
	"github.com/alexisbouchez/forge/pkg/playbook"
	"github.com/alexisbouchez/forge/pkg/secretsvars"
)

type options struct {
	Config       string   `long:"config" env:"FORGE_CONFIG" description:"TOML file of default option values, overridden by any flag/env actually set"`
	PlaybookFile string   `short:"p" long:"playbook" env:"FORGE_PLAYBOOK" description:"playbook file" default:"playbook.yml"`
	Inventory    string   `short:"i" long:"inventory" env:"FORGE_INVENTORY" description:"inventory file"`
	Limit        string   `short:"l" long:"limit" description:"limit to a subset of the play's hosts"`
	Tags         []string `long:"tags" description:"only run tasks with these tags"`
	SkipTags     []string `long:"skip-tags" description:"skip tasks with these tags"`
	Forks        int      `short:"f" long:"forks" description:"max hosts run concurrently" default:"5"`

	SSHUser    string        `short:"u" long:"user" description:"ssh user" default:"root"`
	SSHKey     string        `short:"k" long:"key" description:"ssh private key path"`
	SSHAgent   bool          `long:"ssh-agent" env:"FORGE_SSH_AGENT" description:"authenticate via ssh-agent"`
	SSHTimeout time.Duration `long:"timeout" env:"FORGE_TIMEOUT" description:"ssh connect timeout" default:"30s"`

	ExtraVars map[string]string `short:"e" long:"extra-vars" description:"extra-vars as key=value, highest precedence"`

	SecretsProvider secretsvars.ProviderOptions `group:"secrets" namespace:"secrets" env-namespace:"FORGE_SECRETS"`

	Check   bool   `long:"check" description:"check mode: skip module dispatch and report every task as ok"`
	NoColor bool   `long:"no-color" env:"FORGE_NO_COLOR" description:"disable color output"`
	Verbose []bool `short:"v" long:"verbose" description:"verbosity level"`
	Dbg     bool   `long:"dbg" description:"debug mode"`
}

func main() {
	var opts options
	if cfgPath := scanConfigFlag(os.Args[1:]); cfgPath != "" {
		if err := loadTOMLDefaults(cfgPath, &opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(1)
	}

	setupLog(opts.Dbg)

	runID := uuid.New().String()[:8]
	lgr.Printf("[INFO] run %s starting", runID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		lgr.Printf("[ERROR] run %s: %v", runID, err)
		os.Exit(1)
	}
	lgr.Printf("[INFO] run %s finished", runID)
}

func setupLog(dbg bool) {
	opts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		opts = append(opts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}
	lgr.SetupStdLogger(opts...)
}

// scanConfigFlag looks for --config/--config=VALUE in args ahead of the
// real flag parse, since the config file's own contents need to become
// defaults the real parse can still override.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return os.Getenv("FORGE_CONFIG")
}

// fileDefaults is the subset of options a TOML config file may set as
// defaults; any flag or env var the user actually sets still overrides
// it, since loadTOMLDefaults only fills in opts before go-flags parses.
type fileDefaults struct {
	Playbook  string `toml:"playbook"`
	Inventory string `toml:"inventory"`
	Forks     int    `toml:"forks"`
	SSHUser   string `toml:"ssh_user"`
	SSHKey    string `toml:"ssh_key"`
	Timeout   string `toml:"timeout"`
}

func loadTOMLDefaults(path string, opts *options) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fd fileDefaults
	if err := toml.Unmarshal(data, &fd); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fd.Playbook != "" {
		opts.PlaybookFile = fd.Playbook
	}
	if fd.Inventory != "" {
		opts.Inventory = fd.Inventory
	}
	if fd.Forks != 0 {
		opts.Forks = fd.Forks
	}
	if fd.SSHUser != "" {
		opts.SSHUser = fd.SSHUser
	}
	if fd.SSHKey != "" {
		opts.SSHKey = fd.SSHKey
	}
	if fd.Timeout != "" {
		d, err := time.ParseDuration(fd.Timeout)
		if err != nil {
			return fmt.Errorf("config %s: invalid timeout %q: %w", path, fd.Timeout, err)
		}
		opts.SSHTimeout = d
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	if opts.Inventory == "" {
		return fmt.Errorf("inventory file is required (-i/--inventory)")
	}
	invFile, err := os.Open(opts.Inventory) //nolint:gosec // operator-provided path
	if err != nil {
		return fmt.Errorf("open inventory: %w", err)
	}
	defer invFile.Close() //nolint

	inv, err := inventory.Parse(invFile)
	if err != nil {
		return fmt.Errorf("parse inventory: %w", err)
	}

	pb, err := playbook.Load(opts.PlaybookFile)
	if err != nil {
		return fmt.Errorf("load playbook: %w", err)
	}

	secretsResolved, err := secretsvars.Resolve(opts.ExtraVars, opts.SecretsProvider)
	if err != nil {
		return fmt.Errorf("resolve extra-vars secrets: %w", err)
	}

	logs := executor.MakeLogs(len(opts.Verbose) > 0, opts.NoColor, secretValues(secretsResolved))
	reg := modules.NewRegistry()

	connect := buildConnFactory(opts, logs)

	var overallErr *multierror.Error
	var overallSummary play.Summary

	for _, p := range pb.Plays {
		results, err := play.RunPlay(ctx, p, inv, reg, connect, play.Options{
			Forks:     opts.Forks,
			Tags:      opts.Tags,
			SkipTags:  opts.SkipTags,
			Limit:     opts.Limit,
			ExtraVars: secretsResolved,
			Logs:      logs,
			Check:     opts.Check,
		})
		if err != nil {
			overallErr = multierror.Append(overallErr, fmt.Errorf("play %q: %w", p.Name, err))
			continue
		}
		printResults(p.Name, results, opts.NoColor)
		s := play.Summarize(results)
		overallSummary.OK += s.OK
		overallSummary.Changed += s.Changed
		overallSummary.Failed += s.Failed
		overallSummary.Skipped += s.Skipped
	}

	fmt.Printf("\nok=%d changed=%d failed=%d skipped=%d\n",
		overallSummary.OK, overallSummary.Changed, overallSummary.Failed, overallSummary.Skipped)

	if overallSummary.Failed > 0 {
		overallErr = multierror.Append(overallErr, fmt.Errorf("%d task(s) failed", overallSummary.Failed))
	}
	return overallErr.ErrorOrNil()
}

func secretValues(vars map[string]string) []string {
	var out []string
	for _, v := range vars {
		out = append(out, v)
	}
	return out
}

func buildConnFactory(opts options, logs executor.Logs) play.ConnFactory {
	return func(ctx context.Context, hostName string, vars map[string]string) (executor.Connection, error) {
		var conn executor.Connection
		var err error

		if vars["ansible_connection"] == "local" || hostName == "localhost" {
			conn = executor.NewLocalConnection(hostName)
		} else {
			addr := vars["ansible_host"]
			if addr == "" {
				addr = hostName
			}
			user := vars["ansible_user"]
			if user == "" {
				user = opts.SSHUser
			}
			keyPath := vars["ansible_ssh_private_key_file"]
			if keyPath == "" {
				keyPath = opts.SSHKey
			}
			var proxyCmd []string
			if pc := vars["ansible_ssh_proxy_command"]; pc != "" {
				proxyCmd = strings.Fields(pc)
			}
			conn, err = executor.DialSSHWithProxy(ctx, addr, hostName, user, keyPath, opts.SSHAgent, opts.SSHTimeout, proxyCmd, logs)
			if err != nil {
				return nil, err
			}
		}

		return conn, nil
	}
}

func printResults(playName string, results []play.HostResult, noColor bool) {
	fmt.Printf("\nPLAY [%s]\n", playName)
	for _, hr := range results {
		for _, t := range hr.Tasks {
			line := fmt.Sprintf("%-10s %-20s %-15s %s", t.Status, hr.Host, t.Task, t.Msg)
			fmt.Println(colorizeStatus(t.Status, line, noColor))
		}
	}
}

func colorizeStatus(status play.Status, line string, noColor bool) string {
	if noColor {
		return line
	}
	switch status {
	case play.StatusChanged:
		return color.YellowString(line)
	case play.StatusFailed:
		return color.RedString(line)
	case play.StatusSkipped:
		return color.CyanString(line)
	default:
		return color.GreenString(line)
	}
}
