package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cozystack/pipewiz/pkg/commands"
)

var Version = "dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:               "pipewiz",
	Short:             "Create CI pipelines for Git repositories",
	Long:              ``,
	Version:           Version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
}

// skipConfigCommands never read pipewiz.yaml.
var skipConfigCommands = []string{"completion", "__complete", "help"}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

func Execute() error {
	rootCmd.PersistentFlags().StringVar(&commands.Config.RootDir, "root", ".", "root directory of the project")
	rootCmd.PersistentFlags().StringVar(&commands.GlobalArgs.ConfigFile, "config", "",
		fmt.Sprintf("path to the configuration file, relative to the project root (default %q)", commands.ConfigFilename))
	rootCmd.PersistentFlags().StringVar(&commands.GlobalArgs.ServerURL, "server", "", "URL of the pipeline service, overrides server.url")
	rootCmd.PersistentFlags().StringVar(&commands.GlobalArgs.LogLevel, "log-level", "", "log level: debug, info, warn or error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())

		errorString := err.Error()
		// arg and flag validation errors are plain fmt.Errorf values
		if strings.Contains(errorString, "arg(s)") || strings.Contains(errorString, "flag") || strings.Contains(errorString, "command") {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		}
	}

	return err
}

func init() {
	for _, cmd := range commands.Commands {
		rootCmd.AddCommand(cmd)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if isCommandOrParent(cmd, skipConfigCommands...) {
			return nil
		}

		if err := commands.DetectAndSetRoot(cmd, args); err != nil {
			return err
		}

		if err := loadConfig(commands.ConfigPath(), cmd.Flags().Changed("config")); err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		return nil
	}
}

// isCommandOrParent reports whether cmd or one of its ancestors is named
// one of names.
func isCommandOrParent(cmd *cobra.Command, names ...string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		for _, name := range names {
			if c.Name() == name {
				return true
			}
		}
	}

	return false
}

// loadConfig reads filename into commands.Config. A missing file is only an
// error when it was asked for explicitly.
func loadConfig(filename string, required bool) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}

		return fmt.Errorf("error reading configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, &commands.Config); err != nil {
		return fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	return nil
}
