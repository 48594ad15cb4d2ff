package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys in the encrypted key store",
}

var keysSetCmd = &cobra.Command{
	Use:   "set <provider> [api-key]",
	Short: "Seal and store a provider API key (read from stdin when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey := ""
		if len(args) == 2 {
			apiKey = args[1]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read api key: %w", err)
			}
			apiKey = line
		}
		apiKey = strings.TrimSpace(apiKey)
		if apiKey == "" {
			return errors.New("api key is empty")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Services.KeyStore == nil {
			return errors.New("vault.master_key is not configured; stored keys are disabled")
		}
		if err := a.Services.KeyStore.Store(cmd.Context(), args[0], apiKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("stored")+" "+args[0])
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysSetCmd)
}
