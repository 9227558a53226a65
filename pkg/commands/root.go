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
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cozystack/pipewiz/internal/pkg/session"
)

// ConfigFilename is the name of the project configuration file.
const ConfigFilename = "pipewiz.yaml"

// GlobalArgs is the common arguments for the root command.
var GlobalArgs struct {
	ConfigFile string
	ServerURL  string
	LogLevel   string
}

var Config struct {
	RootDir         string
	RootDirExplicit bool // true if --root was explicitly set
	Server          struct {
		URL            string        `yaml:"url"`
		Organization   string        `yaml:"organization"`
		RemediationURL string        `yaml:"remediationURL"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
		RateLimit      float64       `yaml:"rateLimit"`
		CacheTTL       time.Duration `yaml:"cacheTTL"`
	} `yaml:"server"`
	Flow struct {
		MinDelay    *time.Duration `yaml:"minDelay"`
		SaveDelay   *time.Duration `yaml:"saveDelay"`
		SettleDelay *time.Duration `yaml:"settleDelay"`
	} `yaml:"flow"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	Language string `yaml:"language"`
}

// Commands is a list of commands published by the package.
var Commands []*cobra.Command

func addCommand(cmd *cobra.Command) {
	Commands = append(Commands, cmd)
}

// DetectProjectRoot looks for pipewiz.yaml in startDir and its parents.
// Returns the absolute path of the directory holding it, or empty string if
// not found.
func DetectProjectRoot(startDir string) (string, error) {
	currentDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(currentDir, ConfigFilename)); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached filesystem root
			return "", nil
		}

		currentDir = parentDir
	}
}

// DetectAndSetRoot sets the project root from the current working directory
// unless --root was given.
func DetectAndSetRoot(cmd *cobra.Command, _ []string) error {
	Config.RootDirExplicit = cmd.Flags().Changed("root")
	if Config.RootDirExplicit {
		return nil
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	detectedRoot, err := DetectProjectRoot(currentDir)
	if err == nil && detectedRoot != "" {
		Config.RootDir = detectedRoot
	}

	return nil
}

// ConfigPath resolves the configuration file relative to the project root.
func ConfigPath() string {
	path := GlobalArgs.ConfigFile
	if path == "" {
		path = ConfigFilename
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(Config.RootDir, path)
	}

	return path
}

// sessionConfig merges the configuration file and the global flags over the
// session defaults.
func sessionConfig() *session.Config {
	cfg := session.DefaultConfig()

	setString := func(dst *string, values ...string) {
		for _, v := range values {
			if v != "" {
				*dst = v
			}
		}
	}

	setString(&cfg.ServerURL, Config.Server.URL, GlobalArgs.ServerURL)
	setString(&cfg.RemediationURL, Config.Server.RemediationURL)
	setString(&cfg.Organization, Config.Server.Organization)
	setString(&cfg.LogLevel, Config.Log.Level, GlobalArgs.LogLevel)
	setString(&cfg.LogFile, Config.Log.File)
	setString(&cfg.Language, Config.Language)

	if Config.Server.RequestTimeout != 0 {
		cfg.RequestTimeout = Config.Server.RequestTimeout
	}

	if Config.Server.RateLimit != 0 {
		cfg.RateLimit = Config.Server.RateLimit
	}

	if Config.Server.CacheTTL != 0 {
		cfg.CacheTTL = Config.Server.CacheTTL
	}

	// Delays may be set to zero on purpose.
	for _, d := range []struct {
		dst *time.Duration
		src *time.Duration
	}{
		{&cfg.MinDelay, Config.Flow.MinDelay},
		{&cfg.SaveDelay, Config.Flow.SaveDelay},
		{&cfg.SettleDelay, Config.Flow.SettleDelay},
	} {
		if d.src != nil {
			*d.dst = *d.src
		}
	}

	return cfg
}

// newSession builds a session from the merged configuration. logFile, when
// set, overrides the configured log destination.
func newSession(logFile string) (*session.Session, error) {
	cfg := sessionConfig()
	if logFile != "" {
		cfg.LogFile = logFile
	}

	s, err := session.NewFactory().NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the session: %w", err)
	}

	return s, nil
}
