package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PiyushKumar010/Pattern-Recognition/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage server configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		path, err := config.Save(cfg, cfgFile)
		if err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
