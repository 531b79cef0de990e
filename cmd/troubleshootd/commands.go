package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/troubleshootd/internal/feedback"
	"github.com/fyrsmithlabs/troubleshootd/internal/storage"
	"github.com/fyrsmithlabs/troubleshootd/internal/suggestion"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func validOutput(format string) error {
	if format != outputText && format != outputJSON {
		return fmt.Errorf("%w: --output must be %q or %q", support.ErrValidation, outputText, outputJSON)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func newSuggestCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "suggest <error-id>",
		Short: "Show ranked suggestions for an error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.services.Suggestions().GetSuggestions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := res.PartialError(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json)")
	return cmd
}

func printResult(out io.Writer, res *suggestion.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	printSuggestions := func(heading string, list []suggestion.Suggestion) {
		fmt.Fprintf(w, "%s (%d)\n", heading, len(list))
		if len(list) == 0 {
			return
		}
		fmt.Fprintln(w, "  SCORE\tWEIGHT\tREFERENCE\tTITLE")
		for _, s := range list {
			fmt.Fprintf(w, "  %.3f\t%.3f\t%s\t%s\n", s.Score, s.Weight, truncate(s.ReferenceID, 36), truncate(s.Title, 60))
		}
	}

	printSuggestions("Knowledge base", res.KBMatches)
	fmt.Fprintln(w)
	printSuggestions("Similar resolved errors", res.SimilarErrors)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Diagnostic steps (%d)\n", len(res.DiagnosticSteps))
	for _, step := range res.DiagnosticSteps {
		fmt.Fprintf(w, "  %d.\t%s\t%s\n", step.Number, step.Title, step.Description)
	}

	return w.Flush()
}

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	var (
		helpful    bool
		notHelpful bool
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "feedback <error-id> <source> <reference-id>",
		Short: "Record whether a suggestion helped",
		Long: `Record whether a suggestion helped. source is one of kb_article,
similar_error or diagnostic_step.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := support.ParseSourceKind(args[1])
			if err != nil {
				return err
			}

			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ack, err := a.services.Feedback().Submit(cmd.Context(), feedback.SubmitRequest{
				ErrorID:     args[0],
				Source:      source,
				ReferenceID: args[2],
				Helpful:     feedback.Verdict(helpful),
				ActorID:     actor,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recorded feedback %s\n", ack.FeedbackID)
			return printWeights(cmd.OutOrStdout(), ack.Weights)
		},
	}

	cmd.Flags().BoolVar(&helpful, "helpful", false, "the suggestion helped")
	cmd.Flags().BoolVar(&notHelpful, "not-helpful", false, "the suggestion did not help")
	cmd.Flags().StringVar(&actor, "actor", "", "who is giving the feedback")
	cmd.MarkFlagsMutuallyExclusive("helpful", "not-helpful")
	cmd.MarkFlagsOneRequired("helpful", "not-helpful")
	return cmd
}

func printWeights(out io.Writer, weights []support.Weight) error {
	if len(weights) == 0 {
		fmt.Fprintln(out, "no weights")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tWEIGHT\tHELPFUL\tUNHELPFUL")
	for _, wt := range weights {
		fmt.Fprintf(w, "%s\t%.3f\t%d\t%d\n", truncate(wt.Key.String(), 60), wt.Value, wt.Helpful, wt.Unhelpful)
	}
	return w.Flush()
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		classification string
		severity       string
		source         string
	)

	cmd := &cobra.Command{
		Use:   "record <message>",
		Short: "Capture an error",
		Long: `Capture an error. An open error with the same classification and
message has its occurrence count incremented instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.store.RecordError(cmd.Context(), storage.NewError{
				Classification: classification,
				Message:        args[0],
				Severity:       support.Severity(severity),
				Source:         source,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&classification, "classification", "c", "", "error type tag (required)")
	cmd.Flags().StringVar(&severity, "severity", string(support.SeverityMedium), "low, medium, high or critical")
	cmd.Flags().StringVar(&source, "source", "", "subsystem that raised the error")
	_ = cmd.MarkFlagRequired("classification")
	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		notes  string
		status string
	)

	cmd := &cobra.Command{
		Use:   "resolve <error-id>",
		Short: "Set an error's status and resolution notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.UpdateErrorStatus(cmd.Context(), args[0], support.ErrorStatus(status), notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], status)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	cmd.Flags().StringVar(&status, "status", string(support.StatusResolved), "new, investigating, resolved or dismissed")
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default knowledge-base articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d articles\n", n, len(storage.DefaultArticles()))
			return nil
		},
	}
}

func newReweightCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reweight",
		Short: "Recompute every relevance weight from the feedback log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			weights, err := a.services.Feedback().Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			return printWeights(cmd.OutOrStdout(), weights)
		},
	}
}
