package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valinor-ai/llmguard/internal/analyze"
	"github.com/valinor-ai/llmguard/internal/audit"
	"github.com/valinor-ai/llmguard/internal/platform/config"
	"github.com/valinor-ai/llmguard/internal/scan"
	"github.com/valinor-ai/llmguard/internal/vault"
)

type scanOptions struct {
	prompt   string
	output   string
	failFast bool
}

// scanSummary is printed as JSON by the scan command.
type scanSummary struct {
	SessionID       string       `json:"session_id"`
	SanitizedPrompt string       `json:"sanitized_prompt"`
	PromptValid     bool         `json:"prompt_valid"`
	PromptResults   []scan.Entry `json:"prompt_results"`
	SanitizedOutput *string      `json:"sanitized_output,omitempty"`
	OutputValid     *bool        `json:"output_valid,omitempty"`
	OutputResults   []scan.Entry `json:"output_results,omitempty"`
}

func (s scanSummary) valid() bool {
	return s.PromptValid && (s.OutputValid == nil || *s.OutputValid)
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	so := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a prompt, and optionally a model output, once",
		Long: "Runs the input chain over --prompt and, when --output is set, the output chain over it " +
			"with the same session vault. Use - to read the prompt from stdin. " +
			"Exits with status 2 when any scanner rejects the content.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if so.prompt == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading prompt: %w", err)
				}
				so.prompt = strings.TrimRight(string(raw), "\n")
			}
			if !cmd.Flags().Changed("fail-fast") {
				so.failFast = cfg.Scan.FailFast
			}

			pipeline, err := buildPipeline(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			summary, events, err := runScan(ctx, pipeline, so, cmd.Flags().Changed("output"))
			if err != nil {
				return err
			}
			if err := recordEvents(ctx, cfg, events); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: audit not recorded: %v\n", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
			if !summary.valid() {
				return errInvalidContent
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&so.prompt, "prompt", "p", "", "prompt to scan, - for stdin")
	cmd.Flags().StringVarP(&so.output, "output", "o", "", "model output to scan after the prompt")
	cmd.Flags().BoolVar(&so.failFast, "fail-fast", false, "stop each chain at the first invalid result")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

// runScan runs the chains over one session vault and returns the summary
// with one audit event per chain.
func runScan(ctx context.Context, p *analyze.Pipeline, so *scanOptions, withOutput bool) (scanSummary, []audit.Event, error) {
	sessionID := uuid.NewString()
	v := vault.New()

	start := time.Now()
	in, err := p.ScanPrompt(ctx, v, so.prompt, so.failFast)
	if err != nil {
		return scanSummary{}, nil, fmt.Errorf("scanning prompt: %w", err)
	}
	events := []audit.Event{audit.NewEvent(sessionID, audit.DirectionPrompt, in, time.Since(start), audit.SourceCLI)}

	summary := scanSummary{
		SessionID:       sessionID,
		SanitizedPrompt: in.Text,
		PromptValid:     in.Valid(),
		PromptResults:   in.Entries(),
	}
	if !withOutput {
		return summary, events, nil
	}

	start = time.Now()
	out, err := p.ScanOutput(ctx, v, in.Text, so.output, so.failFast)
	if err != nil {
		return scanSummary{}, nil, fmt.Errorf("scanning output: %w", err)
	}
	events = append(events, audit.NewEvent(sessionID, audit.DirectionOutput, out, time.Since(start), audit.SourceCLI))

	valid := out.Valid()
	summary.SanitizedOutput = &out.Text
	summary.OutputValid = &valid
	summary.OutputResults = out.Entries()
	return summary, events, nil
}

// recordEvents writes events synchronously; the CLI exits right after.
func recordEvents(ctx context.Context, cfg *config.Config, events []audit.Event) error {
	pool, err := connectAudit(ctx, cfg)
	if err != nil || pool == nil {
		return err
	}
	defer pool.Close()
	return audit.NewStore().InsertBatch(ctx, pool, events)
}
