package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/company-lookup/internal/model"
)

var (
	addIndustry string
	addSize     int
	addDomain   string
	addEmail    string
)

var addCmd = &cobra.Command{
	Use:   "add <company name>",
	Short: "Add a company manually, bypassing enrichment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := svc.AddManual(ctx, model.ManualEntry{
			Name:         joinArgs(args),
			Industry:     addIndustry,
			EmployeeSize: addSize,
			Domain:       addDomain,
			Email:        addEmail,
		})
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func init() {
	addCmd.Flags().StringVar(&addIndustry, "industry", "", "primary industry")
	addCmd.Flags().IntVar(&addSize, "size", 0, "approximate employee count")
	addCmd.Flags().StringVar(&addDomain, "domain", "", "primary website domain")
	addCmd.Flags().StringVar(&addEmail, "email", "", "general contact email")
	rootCmd.AddCommand(addCmd)
}
