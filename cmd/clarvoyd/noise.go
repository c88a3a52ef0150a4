package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clarvoy/clarvoy/internal/domain"
)

// Output formats accepted by the noise command.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type noiseOptions struct {
	threshold float64
	output    string
}

func newNoiseCmd() *cobra.Command {
	opts := noiseOptions{threshold: domain.DefaultNoiseConfig().HighNoiseThreshold}
	cmd := &cobra.Command{
		Use:   "noise SCORE...",
		Short: "Compute the noise report for a set of scores",
		Long: `Compute the count, mean and population standard deviation of
judgment scores (1-10) and flag high noise.

Examples:
  clarvoyd noise 1 10 1 10
  clarvoyd noise --threshold 1.5 --output json 4 5 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNoise(cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.threshold, "threshold", opts.threshold, "standard deviation above which noise is high")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")
	return cmd
}

func runNoise(w io.Writer, args []string, opts noiseOptions) error {
	engine, err := domain.NewNoiseEngine(domain.NoiseConfig{HighNoiseThreshold: opts.threshold})
	if err != nil {
		return err
	}

	scores := make([]int, 0, len(args))
	for _, arg := range args {
		score, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("score %q is not an integer", arg)
		}
		if score < domain.MinScore || score > domain.MaxScore {
			return fmt.Errorf("score %d is outside %d-%d", score, domain.MinScore, domain.MaxScore)
		}
		scores = append(scores, score)
	}

	report := engine.Calculate(scores)
	switch opts.output {
	case outputText:
		_, err = fmt.Fprintln(w, report.Summary())
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(report); err == nil {
			err = enc.Close()
		}
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
	return err
}
