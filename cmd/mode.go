package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-scout/internal/model"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Inspect or override the Wasserfall mode",
}

// -- mode show --

var modeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current mode and its parameters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		modes, err := initModes(ctx, st)
		if err != nil {
			return err
		}
		formatModeState(os.Stdout, modes.State(), modes.Modes())
		return nil
	},
}

// -- mode history --

var modeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent mode transitions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		transitions, err := st.ListTransitions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "mode history")
		}
		if len(transitions) == 0 {
			fmt.Fprintln(os.Stderr, "No mode transitions recorded.")
			return nil
		}
		formatTransitions(os.Stdout, transitions)
		return nil
	},
}

// -- mode set --

var modeSetCmd = &cobra.Command{
	Use:       "set <mode>",
	Short:     "Force the Wasserfall mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{model.ModeConservative, model.ModeModerate, model.ModeAggressive},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		modes, err := initModes(ctx, st)
		if err != nil {
			return err
		}
		tr, err := modes.Force(ctx, args[0])
		if err != nil {
			return err
		}
		if tr == nil {
			fmt.Fprintf(os.Stdout, "mode already %s\n", args[0])
			return nil
		}
		fmt.Fprintf(os.Stdout, "mode %s -> %s\n", tr.FromMode, tr.ToMode)
		return nil
	},
}

func init() {
	modeHistoryCmd.Flags().Int("limit", 20, "max number of transitions to display")

	modeCmd.AddCommand(modeShowCmd)
	modeCmd.AddCommand(modeHistoryCmd)
	modeCmd.AddCommand(modeSetCmd)
	rootCmd.AddCommand(modeCmd)
}

// formatModeState writes the state followed by the mode table, marking the
// active mode.
func formatModeState(out io.Writer, st model.ModeState, modes []model.Mode) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "CURRENT\t%s\n", st.Current)
	_, _ = fmt.Fprintf(w, "RUNS\t%d\n", st.RunCounter)
	_, _ = fmt.Fprintf(w, "RUNS SINCE CHANGE\t%d\n", st.RunsSinceTransition)
	if !st.LastTransitionAt.IsZero() {
		_, _ = fmt.Fprintf(w, "LAST CHANGE\t%s\n", st.LastTransitionAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\n\tMODE\tRATE/MIN\tDORK SLOTS\tEXPLORE")
	for _, m := range modes {
		marker := ""
		if m.Name == st.Current {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d-%d\t%.2f\n",
			marker, m.Name, m.RatePerMinute, m.DorkSlotMin, m.DorkSlotMax, m.ExploreRate)
	}
	_ = w.Flush()
}

// formatTransitions writes a tabular list of transitions to out.
func formatTransitions(out io.Writer, transitions []model.ModeTransition) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "AT\tRUN\tFROM\tTO\tREASON")
	for _, t := range transitions {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			t.At.Format("2006-01-02 15:04"), t.RunNumber, t.FromMode, t.ToMode, t.Reason)
	}
	_ = w.Flush()
}
