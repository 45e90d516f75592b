package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const releaseVersion = "0.1.0"

// Config holds every flag/env-bound knob cmd/server exposes, grounded on
// the teacher's partybox Config + newCmd (pflag-backed struct fields,
// viper for env fallback, a validate() gate before serving).
type Config struct {
	bind                   string
	gracePeriod            time.Duration
	promotionCancelAllowed bool
	dbPath                 string
	scanInterval           time.Duration
	settingsPath           string
	verbose                bool
}

func (c *Config) validate() error {
	if c.bind == "" {
		return fmt.Errorf("--bind must not be empty")
	}
	if c.gracePeriod <= 0 {
		return fmt.Errorf("--grace-period must be positive")
	}
	if c.scanInterval <= 0 {
		return fmt.Errorf("--scan-interval must be positive")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ABSORBCHESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "absorbchess-server",
		Short:         "Real-time server for absorption chess: lobbies, matchmaking, rules, and an AI opponent.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0:8765", "address to bind to (env: ABSORBCHESS_BIND)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", 40*time.Second, "disconnect grace period before auto-resign (env: ABSORBCHESS_GRACE_PERIOD)")
	fs.BoolVar(&cfg.promotionCancelAllowed, "promotion-cancel-allowed", false, "allow promotion_choice:\"cancel\" (env: ABSORBCHESS_PROMOTION_CANCEL_ALLOWED)")
	fs.StringVar(&cfg.dbPath, "db-path", "absorbchess.db", "sqlite durable-snapshot path (env: ABSORBCHESS_DB_PATH)")
	fs.DurationVar(&cfg.scanInterval, "scan-interval", 100*time.Millisecond, "clock scanner poll interval (env: ABSORBCHESS_SCAN_INTERVAL)")
	fs.StringVar(&cfg.settingsPath, "settings", "", "path to a JSON tuning file (bot think-time, default lobby settings) (env: ABSORBCHESS_SETTINGS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: ABSORBCHESS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("absorbchess-server v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}
