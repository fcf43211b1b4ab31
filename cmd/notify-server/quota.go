// cmd/notify-server/quota.go
package main

import (
	"encoding/json"
	"fmt"

	"loyalty-notify/internal/models"
	"loyalty-notify/internal/notification/quota"

	"github.com/spf13/cobra"
)

var (
	quotaOrg  string
	quotaPlan string

	quotaCmd = &cobra.Command{
		Use:   "quota",
		Short: "Inspect and change organization notification quotas",
	}

	quotaShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print an organization's quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := quota.NewLedger(a.pg.DB, a.cfg.Quota.Plans, a.log).Status(ctx, quotaOrg)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}

	quotaSetPlanCmd = &cobra.Command{
		Use:   "set-plan",
		Short: "Move an organization to another plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan := models.PlanType(quotaPlan)
			switch plan {
			case models.PlanFree, models.PlanLight, models.PlanPro, models.PlanPremium:
			default:
				return fmt.Errorf("unknown plan %q", quotaPlan)
			}

			ctx := cmd.Context()
			a, err := bootstrap(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			q, err := quota.NewLedger(a.pg.DB, a.cfg.Quota.Plans, a.log).ChangePlan(ctx, quotaOrg, plan)
			if err != nil {
				return err
			}
			return printJSON(cmd, q)
		},
	}
)

func init() {
	quotaCmd.PersistentFlags().StringVar(&quotaOrg, "org", "", "organization id")
	_ = quotaCmd.MarkPersistentFlagRequired("org")
	quotaSetPlanCmd.Flags().StringVar(&quotaPlan, "plan", "", "plan: free, light, pro or premium")
	_ = quotaSetPlanCmd.MarkFlagRequired("plan")

	quotaCmd.AddCommand(quotaShowCmd, quotaSetPlanCmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
