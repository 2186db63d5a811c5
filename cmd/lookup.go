package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-lookup/internal/model"
)

var lookupContext string

var lookupCmd = &cobra.Command{
	Use:   "lookup <company name>",
	Short: "Resolve a company, enriching on cache miss",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		query := joinArgs(args)
		result, err := svc.Lookup(ctx, query, lookupContext)
		if err != nil {
			return err
		}

		if result.Source == model.SourceFailed {
			zap.L().Warn("lookup failed",
				zap.String("query", query),
				zap.String("reason", result.Reason))
		}

		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	lookupCmd.Flags().StringVar(&lookupContext, "context", "", "free-text hint to disambiguate the company")
	rootCmd.AddCommand(lookupCmd)
}
