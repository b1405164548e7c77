package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdesk/ticket-rules/internal/domain"
	"github.com/opsdesk/ticket-rules/internal/rules"
	"github.com/opsdesk/ticket-rules/internal/sla"
)

type classifyOptions struct {
	rulesPath string
	priority  string
	status    string
	created   string
	due       string
	now       string
}

func newClassifyCmd() *cobra.Command {
	var opts classifyOptions
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Print the SLA stage and color for a hypothetical ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.rulesPath, "rules", "", "rules file (built-in rules when empty)")
	cmd.Flags().StringVar(&opts.priority, "priority", "Medium", "ticket priority")
	cmd.Flags().StringVar(&opts.status, "status", domain.StatusOpen, "ticket status")
	cmd.Flags().StringVar(&opts.created, "created", "", "creation time, RFC3339 (defaults to now)")
	cmd.Flags().StringVar(&opts.due, "due", "", "due date, RFC3339")
	cmd.Flags().StringVar(&opts.now, "now", "", "evaluation time, RFC3339 (defaults to the current time)")
	return cmd
}

func runClassify(cmd *cobra.Command, opts classifyOptions) error {
	cfg := rules.Default()
	if opts.rulesPath != "" {
		loaded, err := rules.LoadFile(opts.rulesPath)
		if err != nil {
			return fmt.Errorf("%s: %w", opts.rulesPath, err)
		}
		cfg = loaded
	}

	now := time.Now().UTC()
	if opts.now != "" {
		parsed, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
		now = parsed
	}
	ticket := &domain.Ticket{Priority: opts.priority, Status: opts.status, CreatedAt: now}
	if opts.created != "" {
		parsed, err := time.Parse(time.RFC3339, opts.created)
		if err != nil {
			return fmt.Errorf("--created: %w", err)
		}
		ticket.CreatedAt = parsed
	}
	if opts.due != "" {
		parsed, err := time.Parse(time.RFC3339, opts.due)
		if err != nil {
			return fmt.Errorf("--due: %w", err)
		}
		ticket.DueDate = &parsed
	}

	c := sla.Classify(ticket, cfg, now)
	remaining := sla.Countdown(ticket, cfg, now)
	fmt.Fprintf(cmd.OutOrStdout(), "stage=%s color=%s basis=%s countdown=%q\n",
		c.Stage, c.Color, c.Basis, sla.FormatCountdown(remaining))
	return nil
}
