/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/valpere/synsetran/internal/config"
	"github.com/valpere/synsetran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "synsetran",
	Short: "LLM-driven WordNet synset translator",
	Long: `A CLI application that translates WordNet synsets into a target language
through a staged LLM pipeline: sense analysis, definition translation, lemma
translation, iterative synonym expansion, filtering and definition review.

Every model call is validated against a stage contract, retried when the
response cannot be used, and stored in an audit trail for curators.

Supported backends: Ollama (self-hosted), OpenRouter, Gemini

Use "synsetran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// loadConfig merges .env, the config file, SYNSETRAN_* variables and flags
// into cfg, then configures logging.
func loadConfig() error {
	_ = godotenv.Load()

	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c
	logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bindFlag ties a viper key to a flag of cmd so that an explicitly set flag
// wins over the environment and the config file.
func bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.Flags().Lookup(flag)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(flag)
	}
	if f == nil {
		panic(fmt.Sprintf("cmd: no flag %q to bind to %q", flag, key))
	}
	cobra.CheckErr(v.BindPFlag(key, f))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db", "./data/synsetran.db", "Database path for the audit store, translation memory and glossary")
	rootCmd.PersistentFlags().StringP("source", "s", "en", "Source language code")
	rootCmd.PersistentFlags().StringP("target", "t", "sr", "Target language code")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	bindFlag(rootCmd, "db_path", "db")
	bindFlag(rootCmd, "source_lang", "source")
	bindFlag(rootCmd, "target_lang", "target")
	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.format", "log-format")
}
