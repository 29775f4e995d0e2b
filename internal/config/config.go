// Package config loads the server's runtime configuration from CLI flags,
// environment variables (prefix CODENAMES_), and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob the network runtime, room registry, and
// credential store need at startup.
type Config struct {
	Host         string
	Port         int
	AdminAddr    string
	Workers      int
	DBPath       string
	WordListPath string
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.Workers < 1 {
		return errors.New("--workers must be at least 1")
	}
	return nil
}

// Addr returns the host:port the game listener binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewCommand builds the cobra command that parses args into cfg and invokes
// run once flags are validated. Positional args are "[host] [port]", both
// optional, matching the process surface in SPEC_FULL.md §6.
func NewCommand(cfg *Config, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	_ = godotenv.Load() // optional .env; absence is not an error

	v := viper.New()
	v.SetEnvPrefix("CODENAMES")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "codenames-server [host] [port]",
		Short:         "Authoritative server for a six-player Codenames match.",
		Args:          cobra.RangeArgs(0, 2),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) >= 1 {
				cfg.Host = args[0]
			}
			if len(args) == 2 {
				if _, err := fmt.Sscanf(args[1], "%d", &cfg.Port); err != nil {
					return fmt.Errorf("invalid port argument %q: %w", args[1], err)
				}
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.Host, "host", "0.0.0.0", "address to bind the game listener to (env: CODENAMES_HOST)")
	fs.IntVar(&cfg.Port, "port", 55014, "port the game listener accepts connections on (env: CODENAMES_PORT)")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", "127.0.0.1:8080", "address for the /healthz and /stats admin surface (env: CODENAMES_ADMIN_ADDR)")
	fs.IntVar(&cfg.Workers, "workers", 4, "size of the bounded worker pool dispatching decoded messages (env: CODENAMES_WORKERS)")
	fs.StringVar(&cfg.DBPath, "db-path", "./codenames.db", "path to the credential store's SQLite file (env: CODENAMES_DB_PATH)")
	fs.StringVar(&cfg.WordListPath, "word-list", "./words.txt", "path to the newline-delimited word list (env: CODENAMES_WORD_LIST)")

	_ = v.BindPFlags(fs)

	// Flags are parsed by the time PreRunE runs, so f.Changed distinguishes
	// "user passed --foo" from "still at its default". For anything left at
	// default, pull in the CODENAMES_* env value if one was set, writing it
	// back through fs.Set so it lands in the bound cfg field exactly as a
	// flag would.
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		fs.VisitAll(func(f *pflag.Flag) {
			if !f.Changed && v.IsSet(f.Name) {
				fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
			}
		})
		return nil
	}

	return cmd
}
