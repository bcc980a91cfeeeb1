package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"globalblock/internal/api/dto"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Obtain an API token",
	Long:  `Prints a bearer token on success. Export it as GB_API_TOKEN or pass it via --token.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		var result struct {
			Token string `json:"token"`
			Error string `json:"error"`
		}
		if err := apiPost("/api/login", dto.Credentials{Username: args[0], Password: password}, &result); err != nil {
			return err
		}
		if result.Error != "" {
			return fmt.Errorf("login failed: %s", result.Error)
		}

		fmt.Println(result.Token)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
}
