package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	companiesLimit  int
	companiesOffset int
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List cached companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		companies, err := st.ListCompanies(ctx, companiesLimit, companiesOffset)
		if err != nil {
			return err
		}

		return printJSON(companies)
	},
}

var companiesShowCmd = &cobra.Command{
	Use:   "show <company id>",
	Short: "Show one company with its employees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}
		if company == nil {
			return eris.Errorf("company not found: %s", args[0])
		}

		employees, err := st.ListEmployees(ctx, company.ID)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"company":   company,
			"employees": employees,
		})
	},
}

func init() {
	companiesCmd.Flags().IntVar(&companiesLimit, "limit", 100, "maximum companies to list")
	companiesCmd.Flags().IntVar(&companiesOffset, "offset", 0, "listing offset")
	companiesCmd.AddCommand(companiesShowCmd)
	rootCmd.AddCommand(companiesCmd)
}
