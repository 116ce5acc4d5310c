package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	flagsmith "github.com/Flagsmith/flagsmith-mobile-go-client"
)

var errIdentityRequired = errors.New("--identity is required for this command")

// envFlags maps persistent flags to the environment variables they override.
var envFlags = map[string]string{
	"environment-key": "FLAGSMITH_ENVIRONMENT_KEY",
	"base-url":        "FLAGSMITH_BASE_URL",
	"timeout":         "FLAGSMITH_REQUEST_TIMEOUT",
}

type app struct {
	out      io.Writer
	envFile  string
	identity string
	debug    bool

	cfg    flagsmith.EnvConfig
	client *flagsmith.Client
}

// execute runs the command line args and releases the client afterwards,
// whether or not the command succeeded.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out}
	cmd := a.newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, a.shutdown(ctx))
}

// newRootCmd constructs the root CLI command writing results to a.out.
func (a *app) newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flagsmith",
		Short:         "Query flags and traits of a Flagsmith environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("environment-key", "", "Environment key (overrides FLAGSMITH_ENVIRONMENT_KEY)")
	flags.String("base-url", "", "API base URL (overrides FLAGSMITH_BASE_URL)")
	flags.String("timeout", "", "Request timeout, e.g. 5s (overrides FLAGSMITH_REQUEST_TIMEOUT)")
	flags.StringVar(&a.envFile, "env-file", ".env", "Dotenv file to load before reading the environment")
	flags.StringVarP(&a.identity, "identity", "i", "", "Identity to evaluate flags and traits for")
	flags.BoolVarP(&a.debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(a.newFlagsCmd())
	rootCmd.AddCommand(a.newHasFlagCmd())
	rootCmd.AddCommand(a.newValueCmd())
	rootCmd.AddCommand(a.newTraitsCmd())
	rootCmd.AddCommand(a.newTraitCmd())
	rootCmd.AddCommand(a.newSetTraitCmd())
	rootCmd.AddCommand(a.newIdentityCmd())

	return rootCmd
}

func (a *app) connect(cmd *cobra.Command) error {
	for _, name := range flagsmith.SortedKeys(envFlags) {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := os.Setenv(envFlags[name], f.Value.String()); err != nil {
			return err
		}
	}

	cfg, err := flagsmith.LoadEnvConfig(a.envFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	opts, err := cfg.Options(cmd.Context())
	if err != nil {
		return fmt.Errorf("open analytics store: %w", err)
	}

	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	opts = append(opts, flagsmith.WithLogger(logger))

	a.cfg = cfg
	a.client = flagsmith.NewClient(cfg.EnvironmentKey, opts...)
	return nil
}

// shutdown flushes analytics when enabled, then closes the client.
func (a *app) shutdown(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	var err error
	if a.cfg.EnableAnalytics {
		err = a.client.FlushAnalytics(ctx)
	}
	return errors.Join(err, a.client.Close())
}

func (a *app) requireIdentity() error {
	if a.identity == "" {
		return errIdentityRequired
	}
	return nil
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) newFlagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flags",
		Short: "List the flags of the environment or of --identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := a.client.GetFeatureFlags(cmd.Context(), a.identity)
			if err != nil {
				return err
			}
			return a.print(flags)
		},
	}
}

func (a *app) newHasFlagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has-flag NAME",
		Short: "Report whether a feature exists and is enabled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := a.client.HasFeatureFlag(cmd.Context(), args[0], a.identity)
			if err != nil {
				return err
			}
			return a.print(enabled)
		},
	}
}

func (a *app) newValueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "value NAME",
		Short: "Print the value of an enabled feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.client.GetValueForFeature(cmd.Context(), args[0], a.identity)
			if err != nil {
				return err
			}
			return a.print(value)
		},
	}
}

func (a *app) newTraitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traits",
		Short: "List the traits of --identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			traits, err := a.client.GetTraits(cmd.Context(), a.identity)
			if err != nil {
				return err
			}
			return a.print(traits)
		},
	}
}

func (a *app) newTraitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trait KEY",
		Short: "Print one trait of --identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			trait, err := a.client.GetTrait(cmd.Context(), args[0], a.identity)
			if err != nil {
				return err
			}
			return a.print(trait)
		},
	}
}

func (a *app) newSetTraitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-trait KEY VALUE",
		Short: "Set a trait of --identity",
		Long: "Set a trait of --identity. VALUE is decoded as JSON when possible " +
			"(42, true, 1.5) and used as a plain string otherwise.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			trait := flagsmith.Trait{TraitKey: args[0], TraitValue: parseTraitValue(args[1])}
			saved, err := a.client.SetTrait(cmd.Context(), trait, a.identity)
			if err != nil {
				return err
			}
			return a.print(saved)
		},
	}
}

func (a *app) newIdentityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Print the flags and traits of --identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireIdentity(); err != nil {
				return err
			}
			res, err := a.client.GetIdentity(cmd.Context(), a.identity)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
}

// parseTraitValue decodes raw as a JSON scalar, falling back to the raw string.
func parseTraitValue(raw string) interface{} {
	var trait flagsmith.Trait
	if err := json.Unmarshal([]byte(`{"trait_value":`+raw+`}`), &trait); err != nil {
		return raw
	}
	switch trait.TraitValue.(type) {
	case bool, int, float64, string:
		return trait.TraitValue
	}
	return raw
}
