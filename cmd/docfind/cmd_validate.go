package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dosco/docfind/serv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	validateVerbose bool
	validateJSON    bool
)

// ValidateResult holds the overall validation results
type ValidateResult struct {
	Success  bool          `json:"success"`
	Checks   []CheckStatus `json:"checks"`
	Error    string        `json:"error,omitempty"`
	Duration string        `json:"duration"`
}

// CheckStatus holds the status of a single check
type CheckStatus struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Note    string `json:"note,omitempty"`
}

func validateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "validate",
		Short: "Validate config, store connectivity and saved filters",
		Long: `Validate the configuration and everything it points at:
- Database connectivity
- Every saved filter parses and all its paths are valid

Exit codes:
  0 - All checks passed
  1 - A check failed`,
		Run: cmdValidate,
	}
	c.Flags().BoolVarP(&validateVerbose, "verbose", "v", false, "Show detailed output for each check")
	c.Flags().BoolVar(&validateJSON, "json", false, "Output results in JSON format")
	return c
}

func cmdValidate(cmd *cobra.Command, args []string) {
	start := time.Now()
	var checks []CheckStatus

	if err := setup(cpath); err != nil {
		outputFailure(err, checks, start)
		os.Exit(1)
	}
	checks = append(checks, CheckStatus{Name: "config", Type: "yaml", Status: "ok"})

	s, err := serv.NewService(cfg, serv.OptionSetLogger(zap.NewNop()))
	if err != nil {
		outputFailure(errors.Wrap(err, "failed to initialize service"), checks, start)
		os.Exit(1)
	}
	defer s.Close(context.Background()) //nolint:errcheck

	dbCheck, err := checkDatabase(s)
	checks = append(checks, dbCheck)
	if err != nil {
		outputFailure(err, checks, start)
		os.Exit(1)
	}

	filterChecks, err := checkFilters(s)
	checks = append(checks, filterChecks...)
	if err != nil {
		outputFailure(err, checks, start)
		os.Exit(1)
	}

	outputResult(ValidateResult{
		Success:  true,
		Checks:   checks,
		Duration: time.Since(start).String(),
	})
}

func checkDatabase(s *serv.Service) (CheckStatus, error) {
	dbType := cfg.DB.Type
	if dbType == "" {
		dbType = "memory"
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		return CheckStatus{
			Name:   "database",
			Type:   dbType,
			Status: "failed",
			Note:   err.Error(),
		}, errors.Wrap(err, "database ping")
	}

	return CheckStatus{
		Name:    "database",
		Type:    dbType,
		Status:  "ok",
		Latency: time.Since(start).String(),
	}, nil
}

// checkFilters reads every saved filter bypassing the cache
func checkFilters(s *serv.Service) ([]CheckStatus, error) {
	fl := s.Filters()

	names, err := fl.Names()
	if err != nil {
		return nil, errors.Wrap(err, "saved filters")
	}

	var results []CheckStatus
	var failed int

	for _, name := range names {
		cs := CheckStatus{Name: fmt.Sprintf("filter:%s", name), Type: "filter", Status: "ok"}

		if f, err := fl.GetByName(name, false); err != nil {
			cs.Status = "failed"
			cs.Note = err.Error()
			failed++
		} else {
			cs.Note = "collection " + f.Collection
		}
		results = append(results, cs)
	}

	if failed != 0 {
		return results, errors.Errorf("%d of %d saved filters are invalid", failed, len(names))
	}
	return results, nil
}

func outputFailure(err error, checks []CheckStatus, start time.Time) {
	outputResult(ValidateResult{
		Success:  false,
		Checks:   checks,
		Error:    err.Error(),
		Duration: time.Since(start).String(),
	})
}

func outputResult(result ValidateResult) {
	if validateJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Println()
	for _, c := range result.Checks {
		status := "OK"
		if c.Status == "failed" {
			status = "FAILED"
		}
		line := fmt.Sprintf("  %s (%s): %s", c.Name, c.Type, status)
		if c.Latency != "" && validateVerbose {
			line += fmt.Sprintf(" [%s]", c.Latency)
		}
		if c.Note != "" && (c.Status == "failed" || validateVerbose) {
			line += fmt.Sprintf(" - %s", c.Note)
		}
		fmt.Println(line)
	}
	fmt.Println()

	if result.Success {
		fmt.Printf("All checks passed (%s)\n", result.Duration)
	} else {
		fmt.Printf("Validation failed: %s (%s)\n", result.Error, result.Duration)
	}
}
