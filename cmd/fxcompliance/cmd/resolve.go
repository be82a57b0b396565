package cmd

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fx-compliance-engine/cmd/fxcompliance/config"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/resolution"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// Flags for the resolve commands
var (
	resolveKey    resolution.Key
	resolveType   string
	resolveStatus string
	resolveNote   string
	resolveActor  string
	listStatus    string
)

// resolveCmd groups the resolution tracking commands
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Track analyst resolution of discrepancies",
	Long: `Resolve records the analyst status and notes of a discrepancy. The state
is saved in the --state-db file and reattached to the discrepancy on every
later analysis, since discrepancies are recomputed from scratch each pass.

A discrepancy is identified by entity, date, type and the ids of the paired
customs and financial records.`,
}

var resolveSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the resolution status of a discrepancy",
	Example: `  fxcompliance resolve set --state-db state.db --entity "Acme Imports" \
    --date 2023-05-15 --type total --customs-id C-1 --financial-id F-1 \
    --status investigating --note "awaiting bank confirmation"`,
	RunE: runResolveSet,
}

var resolveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved resolution states",
	RunE:  runResolveList,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.AddCommand(resolveSetCmd, resolveListCmd)

	flags := resolveSetCmd.Flags()
	flags.StringVar(&resolveKey.Entity, "entity", "", "entity of the discrepancy (required)")
	flags.StringVar(&resolveKey.Date, "date", "", "date of the discrepancy, YYYY-MM-DD (required)")
	flags.StringVar(&resolveType, "type", "", "discrepancy type: total, quantity, price, unmatched (required)")
	flags.StringVar(&resolveKey.CustomsID, "customs-id", "", "id of the customs record")
	flags.StringVar(&resolveKey.FinancialID, "financial-id", "", "id of the financial record")
	flags.StringVar(&resolveStatus, "status", "", "unresolved, investigating or resolved (required)")
	flags.StringVar(&resolveNote, "note", "", "annotation text; omitted keeps the current notes")
	flags.StringVar(&resolveActor, "actor", "cli", "actor recorded in the audit trail")

	resolveSetCmd.MarkFlagRequired("entity")
	resolveSetCmd.MarkFlagRequired("date")
	resolveSetCmd.MarkFlagRequired("type")
	resolveSetCmd.MarkFlagRequired("status")

	resolveListCmd.Flags().StringVar(&listStatus, "status", "", "only list states with this status")
}

// persistentState opens the state store and refuses the in-memory fallback,
// which would drop the change when the process exits
func persistentState(log logger.Logger) (*stateStore, error) {
	if appConfig.StateDB == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, config.KeyStateDB, nil, nil).
			WithSuggestion("pass --state-db or set FXCOMPLIANCE_STATE_DB")
	}
	return openState(appConfig, log)
}

func runResolveSet(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := logger.GetGlobalLogger().WithComponent("resolve")

	state, err := persistentState(log)
	if err != nil {
		return err
	}
	defer state.Close()

	key := resolveKey
	key.Type = models.DiscrepancyType(resolveType)

	change := resolution.Change{
		Status: models.ResolutionStatus(resolveStatus),
		Actor:  resolveActor,
	}
	if cmd.Flags().Changed("note") {
		note := resolveNote
		change.Annotations = &note
	}

	updated, err := state.tracker.Update(ctx, key, change)
	if err != nil {
		return err
	}

	entry := resolution.AuditEntry{
		Actor:  resolveActor,
		Action: resolution.ActionResolutionUpdated,
		Module: resolution.ModuleReconciliation,
		Detail: fmt.Sprintf("%s set to %s", updated.Key.String(), updated.Status),
	}
	if err := state.audit.Record(ctx, entry); err != nil {
		log.WithError(err).Warn("failed to record audit entry")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", updated.Key.String(), updated.Status)
	return nil
}

func runResolveList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := logger.GetGlobalLogger().WithComponent("resolve")

	state, err := persistentState(log)
	if err != nil {
		return err
	}
	defer state.Close()

	states, err := state.tracker.List(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Key.String() < states[j].Key.String()
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tDATE\tTYPE\tCUSTOMS\tFINANCIAL\tSTATUS\tUPDATED BY\tNOTES")
	for _, s := range states {
		if listStatus != "" && string(s.Status) != listStatus {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Key.Entity, s.Key.Date, s.Key.Type, s.Key.CustomsID, s.Key.FinancialID,
			s.Status, s.UpdatedBy, s.Annotations)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	counts, err := state.states.CountByStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d unresolved, %d investigating, %d resolved\n",
		counts[models.ResolutionUnresolved], counts[models.ResolutionInvestigating], counts[models.ResolutionResolved])
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
