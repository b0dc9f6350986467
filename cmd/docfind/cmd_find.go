package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dosco/docfind/conf"
	"github.com/dosco/docfind/core"
	"github.com/dosco/docfind/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	findFile    string
	findName    string
	findWhere   string
	findTimeout time.Duration
)

func findCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "find",
		Short: "Run a filter and print the results as JSON",
		Long: `Run a filter file (-f) or a saved filter (-n) and print the results.

  docfind find -f filters/active_users.yml
  docfind find -n active_users --where '{"name": "Alice"}'`,
		RunE: cmdFind,
	}

	c.Flags().StringVarP(&findFile, "file", "f", "", "filter file (.yml, .yaml or .json)")
	c.Flags().StringVarP(&findName, "name", "n", "", "name of a saved filter")
	c.Flags().StringVar(&findWhere, "where", "", "JSON predicate merged over the filter's where")
	c.Flags().DurationVar(&findTimeout, "timeout", time.Minute, "query timeout")
	return c
}

func cmdFind(cmd *cobra.Command, args []string) error {
	if (findFile == "") == (findName == "") {
		return errors.New("exactly one of --file or --name is required")
	}

	if err := setup(cpath); err != nil {
		return err
	}

	// stdout carries the results
	s, err := serv.NewService(cfg, serv.OptionSetLogger(zap.NewNop()))
	if err != nil {
		return errors.Wrap(err, "failed to initialize service")
	}
	defer s.Close(context.Background()) //nolint:errcheck

	var o conf.Overrides
	if findWhere != "" {
		if err := json.Unmarshal([]byte(findWhere), &o.Where); err != nil {
			return errors.Wrap(err, "invalid --where")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), findTimeout)
	defer cancel()

	var docs []core.Document

	if findName != "" {
		docs, err = s.FindByName(ctx, findName, o)
	} else {
		var f *core.Filter
		if f, err = readFilter(findFile); err != nil {
			return err
		}
		docs, err = s.Find(ctx, conf.Apply(f, o))
	}
	if err != nil {
		return errors.Wrap(err, "find failed")
	}

	if docs == nil {
		docs = []core.Document{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func readFilter(fn string) (*core.Filter, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read filter '%s'", fn)
	}

	var f core.Filter
	switch filepath.Ext(fn) {
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(b, &f)
	default:
		return nil, errors.Errorf("unsupported filter file '%s'", fn)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse filter '%s'", fn)
	}
	return &f, nil
}
