package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Alias1177/Cardeon/internal/config"
	"github.com/Alias1177/Cardeon/internal/inference"
	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/internal/prompt"
	"github.com/Alias1177/Cardeon/internal/report"
	"github.com/Alias1177/Cardeon/models"
)

// pipelineFactory builds the pipeline used by the predict command.
type pipelineFactory func() (*pipeline.Pipeline, error)

func main() {
	config.SetupLogger(os.Getenv("LOG_LEVEL"))

	if err := rootCmd(newPipelineFromEnv, report.NewExporter()).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(newPipeline pipelineFactory, exporter *report.Exporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cardeon",
		Short:        "Cardiovascular risk assessment from UCI heart disease features",
		SilenceUsage: true,
	}

	cmd.AddCommand(predictCmd(newPipeline, exporter))
	cmd.AddCommand(promptCmd())
	cmd.AddCommand(schemaCmd())
	return cmd
}

func newPipelineFromEnv() (*pipeline.Pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.LogLevel)

	generator, err := inference.NewGenerator(cfg, inference.NewTransport(cfg))
	if err != nil {
		return nil, err
	}
	return pipeline.New(inference.NewClient(generator), cfg.Timeout()), nil
}

func predictCmd(newPipeline pipelineFactory, exporter *report.Exporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Assess one patient record and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			reportDir, _ := cmd.Flags().GetString("report-dir")

			data, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			patient, err := models.ParsePatientJSON(data)
			if err != nil {
				return err
			}

			p, err := newPipeline()
			if err != nil {
				return err
			}
			result, err := p.Predict(cmd.Context(), patient)
			if err != nil {
				return err
			}

			if reportDir != "" {
				doc, err := exporter.Export(patient, result)
				if err != nil {
					return err
				}
				path, err := report.Save(reportDir, doc)
				if err != nil {
					return err
				}
				log.Info().Str("path", path).Msg("Report written")
			}

			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("input", "-", "Patient JSON file, - for stdin")
	cmd.Flags().String("report-dir", "", "Also write the HTML report into this directory")
	return cmd
}

func promptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the inference prompt built for a patient record",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")

			data, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			patient, err := models.ParsePatientJSON(data)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt.Build(patient).Prompt)
			return err
		},
	}
	cmd.Flags().String("input", "-", "Patient JSON file, - for stdin")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the response schema sent to the inference service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), prompt.ResponseSchema())
		},
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
