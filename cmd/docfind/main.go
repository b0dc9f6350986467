// Command docfind runs and validates document filters.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dosco/docfind/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/thessem/zap-prettyconsole"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

var (
	log   *zap.SugaredLogger
	cfg   *serv.Config
	cpath string
)

func main() {
	log = newLogger().Sugar()

	rootCmd := &cobra.Command{
		Use:           "docfind",
		Short:         "Recursive document filters with relations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(findCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newLogger() *zap.Logger {
	return prettyconsole.NewLogger(zap.InfoLevel)
}

// setup reads the config for the environment named by GO_ENV
func setup(cpath string) error {
	cn := getConfigName()

	var err error
	if cfg, err = serv.ReadInConfig(filepath.Join(cpath, cn)); err != nil {
		return errors.Wrapf(err, "failed to read config '%s'", cn)
	}
	return nil
}

func getConfigName() string {
	ge := strings.ToLower(os.Getenv("GO_ENV"))

	switch {
	case ge == "":
		return "dev"
	case strings.HasPrefix(ge, "pro"):
		return "prod"
	case strings.HasPrefix(ge, "sta"):
		return "stage"
	case strings.HasPrefix(ge, "tes"):
		return "test"
	case strings.HasPrefix(ge, "dev"):
		return "dev"
	}
	return ge
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildDetails())
		},
	}
}

func buildDetails() string {
	s := "docfind " + version
	if commit != "" {
		s += fmt.Sprintf(" (%s)", commit)
	}
	if date != "" {
		s += " built " + date
	}
	return s
}
