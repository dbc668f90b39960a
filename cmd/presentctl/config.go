package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/presentd/internal/config"
)

var configOpts struct {
	daemonPath string
	yaml       bool
	force      bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the presentd configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective daemon configuration",
	Long: `Print the daemon configuration after defaults are applied, as TOML or
with --yaml as YAML.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the daemon configuration file",
	RunE:  runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default daemon configuration file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd, configInitCmd)

	configCmd.PersistentFlags().StringVar(&configOpts.daemonPath, "daemon-config", "",
		"Path to presentd.toml (default: ~/.config/presentd/presentd.toml)")
	configShowCmd.Flags().BoolVar(&configOpts.yaml, "yaml", false,
		"Print as YAML")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite an existing file")
}

func daemonConfigPath() string {
	if configOpts.daemonPath != "" {
		return configOpts.daemonPath
	}
	return config.DaemonConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	dcfg, err := config.LoadDaemonConfig(daemonConfigPath())
	if err != nil {
		return err
	}

	var data []byte
	if configOpts.yaml {
		data, err = yaml.Marshal(dcfg)
	} else {
		data, err = toml.Marshal(dcfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = os.Stdout.Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := daemonConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("%s does not exist, defaults apply\n", path)
		return nil
	}

	dcfg, err := config.LoadDaemonConfig(path)
	if err != nil {
		return err
	}
	fmt.Printf("%s is valid (%d windows)\n", path, len(dcfg.Windows))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := daemonConfigPath()
	if _, err := os.Stat(path); err == nil && !configOpts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveDaemonConfig(config.DefaultDaemonConfig(), path); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}
