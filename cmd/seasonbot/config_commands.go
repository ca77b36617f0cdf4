package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"seasonbot/internal/catalog"
	"seasonbot/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set bot.token and bot.admins (or SEASONBOT_BOT_TOKEN and SEASONBOT_ADMINS) before running seasonbot.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// newConfigValidateCommand checks the file, the runtime requirements and
// that the catalog backend opens.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and storage access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if ctx.configSeen {
				fmt.Fprintln(out, renderStatusLine("Config", statusOK, ctx.configPath, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Config", statusInfo, "no file at "+ctx.configPath+"; defaults used", colorize))
			}

			failed := false
			if err := cfg.ValidateRuntime(); err != nil {
				fmt.Fprintln(out, renderStatusLine("Bot", statusWarn, err.Error(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Bot", statusOK,
					fmt.Sprintf("%s mode, %d admin(s)", cfg.Bot.Mode, len(cfg.Bot.Admins)), colorize))
			}

			c := cmd.Context()
			if c == nil {
				c = context.Background()
			}
			if store, err := catalog.Open(c, cfg); err != nil {
				failed = true
				fmt.Fprintln(out, renderStatusLine("Storage", statusError, err.Error(), colorize))
			} else {
				_ = store.Close()
				fmt.Fprintln(out, renderStatusLine("Storage", statusOK, cfg.Storage.Backend, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Sessions", statusInfo,
				fmt.Sprintf("%s, idle timeout %s", cfg.Sessions.Backend, cfg.IdleTimeout()), colorize))

			if failed {
				return fmt.Errorf("configuration invalid")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
