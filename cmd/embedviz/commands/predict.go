package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var predictJSON bool

// NewPredictCmd creates the predict command
func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify every uploaded image",
		Long: `Ask the backend to classify every uploaded image using the labeled
regions collected so far.`,
		Args: cobra.NoArgs,
		RunE: runPredict,
	}
	cmd.Flags().BoolVar(&predictJSON, "json", false, "Print the raw JSON result")
	return cmd
}

func runPredict(cmd *cobra.Command, args []string) error {
	insp, cfg, _, err := newInspector()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
	defer cancel()

	res, err := insp.Predict(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if predictJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res.Status != "" {
		fmt.Fprintln(out, res.Status)
	}
	for _, p := range res.Predictions {
		fmt.Fprintf(out, "%-40s %s\n", p.Filename, p.PredictedClass)
	}
	return nil
}
