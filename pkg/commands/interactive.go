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
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/logging"
	"github.com/cozystack/pipewiz/internal/pkg/ui/wizard"
)

var interactiveCmdFlags struct {
	logFile string
}

// interactiveCmd starts the terminal UI of the wizard.
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Create a pipeline with a terminal UI",
	Long:  `Start a terminal-based UI (TUI) that walks through connecting a repository and creating its pipeline.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile := interactiveCmdFlags.logFile
		if logFile == "" {
			logFile = Config.Log.File
		}

		if logFile == "" {
			logFile = filepath.Join(Config.RootDir, logging.DefaultFile)
		}

		s, err := newSession(logFile)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		s.Logger.Info("starting interactive wizard", zap.String("server", s.Config.ServerURL))

		return wizard.New(s.Machine, s.T, s.Logger).Run(cmd.Context())
	},
}

func init() {
	interactiveCmd.Flags().StringVar(&interactiveCmdFlags.logFile, "log-file", "", "file to write logs to while the UI owns the terminal (default: "+logging.DefaultFile+" in the project root)")
	addCommand(interactiveCmd)
}
