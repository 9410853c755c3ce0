package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkProvider string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configured provider credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(checkProvider, "")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.engine.ValidateCredentials(cmd.Context())
		if err != nil {
			return err
		}
		name := a.engine.Provider().Name()
		if !ok {
			return errors.New(name + " rejected the configured API key")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (default model %s)\n",
			name, color.GreenString("credentials OK"), a.engine.Model())
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkProvider, "provider", "p", "", "provider to check (default from config)")
}
