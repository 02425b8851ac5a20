package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/api"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/config"
	"github.com/abhishek-sinu/Vedic-ebook-library-sub000/internal/home"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Long: `Write config.yaml with every default setting.

The file goes to --config when given, otherwise to the home directory
(~/.library/config.yaml).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		return api.Output(mgr.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads --config, or config.yaml in the home directory when it
// exists, falling back to viper's search paths.
func loadConfig() (*config.Manager, error) {
	path := cfgFile
	if path == "" {
		if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	return config.NewManager(path)
}
