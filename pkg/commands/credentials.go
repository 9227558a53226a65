// Copyright Cozystack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"io"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/cozystack/pipewiz/internal/pkg/credentials"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Inspect the credentials known to the pipeline service",
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Long:  `List the stored credentials. The system SSH credential, used when none is selected for an SSH repository, is marked with *.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession("")
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		if _, err = s.Credentials.ListAllCredentials(cmd.Context()); err != nil {
			return err
		}

		// The sentinel always comes first.
		stored := s.Credentials.Credentials()[1:]

		return printCredentials(cmd.OutOrStdout(), stored, s.Credentials.SystemSSHCredential())
	},
}

func printCredentials(w io.Writer, stored []credentials.Credential, systemSSH *credentials.Credential) error {
	if len(stored) == 0 {
		_, err := fmt.Fprintln(w, "no credentials found")

		return err
	}

	lines := []string{"ID | NAME | KIND | USERNAME | SYSTEM"}

	for _, c := range stored {
		mark := ""
		if systemSSH != nil && systemSSH.ID == c.ID {
			mark = "*"
		}

		lines = append(lines, fmt.Sprintf("%s | %s | %s | %s | %s", c.ID, c.Label(), c.Kind, c.Username, mark))
	}

	_, err := fmt.Fprintln(w, columnize.SimpleFormat(lines))

	return err
}

func init() {
	credentialsCmd.AddCommand(credentialsListCmd)
	addCommand(credentialsCmd)
}
