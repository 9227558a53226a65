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

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query the pipeline service directly",
}

var checkNameCmd = &cobra.Command{
	Use:   "name NAME",
	Short: "Check whether a pipeline name is available",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession("")
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		available, err := s.Machine.CheckPipelineNameAvailable(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if available {
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), s.T("ui.name_available", map[string]any{"Name": args[0]})) //nolint:errcheck

			return nil
		}

		color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), s.T("ui.name_taken", map[string]any{"Name": args[0]})) //nolint:errcheck

		return nil
	},
}

var checkBuildFileCmd = &cobra.Command{
	Use:   "buildfile URL",
	Short: "Check whether a repository has a Jenkinsfile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession("")
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		status, err := s.API.CheckBuildFileExists(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if status.Exists {
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Jenkinsfile found in %s\n", args[0]) //nolint:errcheck

			return nil
		}

		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "no Jenkinsfile in %s\n", args[0]) //nolint:errcheck

		if status.Detail != "" {
			fmt.Fprintln(cmd.OutOrStdout(), status.Detail) //nolint:errcheck
		}

		return nil
	},
}

func init() {
	checkCmd.AddCommand(checkNameCmd, checkBuildFileCmd)
	addCommand(checkCmd)
}
