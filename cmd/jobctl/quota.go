package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiinpocket/HomePage/internal/domain"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage owner job quotas",
}

var quotaSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Assign a tier and optional job limit to an owner",
	Long:  "Assigns a tier (free, basic, pro, enterprise) to an owner. --max overrides the tier's job allowance; 0 keeps the tier default.",
	RunE:  runQuotaSet,
}

var (
	quotaOwner string
	quotaTier  string
	quotaMax   int
)

func init() {
	quotaSetCmd.Flags().StringVar(&quotaOwner, "owner", "", "Owner id (required)")
	quotaSetCmd.Flags().StringVar(&quotaTier, "tier", string(domain.OwnerTierFree), "Tier name")
	quotaSetCmd.Flags().IntVar(&quotaMax, "max", 0, "Job limit override (0 uses the tier default)")
	if err := quotaSetCmd.MarkFlagRequired("owner"); err != nil {
		panic(fmt.Sprintf("failed to mark owner flag as required: %v", err))
	}

	quotaCmd.AddCommand(quotaSetCmd)
	rootCmd.AddCommand(quotaCmd)
}

func runQuotaSet(cmd *cobra.Command, _ []string) error {
	owner := strings.TrimSpace(quotaOwner)
	if owner == "" {
		return errors.New("--owner must not be blank")
	}
	tier, err := domain.ParseOwnerTier(quotaTier)
	if err != nil {
		return fmt.Errorf("%w: %q", err, quotaTier)
	}
	if quotaMax < 0 {
		return errors.New("--max must not be negative")
	}

	ctx, rt, done, err := openRuntime(cmd, "quota")
	if err != nil {
		return err
	}
	defer done()

	if err := rt.Owners.UpsertOwner(ctx, &domain.Owner{ID: owner, Tier: tier, MaxJobs: quotaMax}); err != nil {
		return fmt.Errorf("failed to update owner: %w", err)
	}
	limit := quotaMax
	if limit == 0 {
		limit = tier.MaxJobs()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "owner %s set to tier %s (max_jobs=%d)\n", owner, tier, limit)
	return nil
}
