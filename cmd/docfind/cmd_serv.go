package main

import (
	"github.com/dosco/docfind/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the docfind service",
		RunE:  cmdServ,
	}
}

func cmdServ(cmd *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	s, err := serv.NewService(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize service")
	}

	return s.Start()
}
