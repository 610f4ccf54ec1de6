package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/outwriter"
	"github.com/huangsam/perfscope/schema"
	"github.com/spf13/cobra"
)

// alertStore returns the configured alert store or a disabled-store error.
func alertStore() (contract.AlertStore, error) {
	alerts := storeManager.GetAlertStore()
	if alerts == nil {
		return nil, fmt.Errorf("alerts: %w", contract.ErrStoreDisabled)
	}
	return alerts, nil
}

// parseID parses a positive integer ID argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", arg)
	}
	return id, nil
}

// alertConfigFromFlags builds an alert rule from the add command's flags.
func alertConfigFromFlags(cmd *cobra.Command) (schema.AlertConfig, error) {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	metric, _ := flags.GetString("metric")
	condition, _ := flags.GetString("condition")
	threshold, _ := flags.GetFloat64("threshold")
	route, _ := flags.GetString("alert-route")
	window, _ := flags.GetInt("window")
	severity, _ := flags.GetString("severity")
	disabled, _ := flags.GetBool("disabled")

	c := schema.AlertConfig{
		Name:          name,
		MetricType:    schema.MetricType(metric),
		Condition:     schema.AlertCondition(condition),
		Threshold:     threshold,
		RoutePattern:  route,
		WindowMinutes: window,
		Severity:      schema.Severity(severity),
		Enabled:       !disabled,
	}
	return c, contract.ValidateStruct(c)
}

// alertsCmd groups alert rule and alert instance management.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage threshold alerts",
	Long: `Manage alert rules and the alerts they trigger.

An alert rule compares the mean of one metric over a trailing window against a
threshold. A threshold check triggers an alert for every violated rule that has
no open alert yet. Alerts move from active to acknowledged to resolved.

Subcommands:
  config  - Add, list and delete alert rules
  list    - List triggered alerts
  ack     - Acknowledge an active alert
  resolve - Resolve an alert
  check   - Run one threshold check now

Examples:
  perfscope alerts config add --name "home fps" --metric fps --condition below --threshold 45 --alert-route /home
  perfscope alerts check
  perfscope alerts list --status active`,
}

// alertsConfigCmd groups alert rule management.
var alertsConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage alert rules",
}

var alertsConfigAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Create an alert rule",
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		alerts, err := alertStore()
		if err != nil {
			return err
		}
		c, err := alertConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		created, err := alerts.CreateConfig(rootCtx, c)
		if err != nil {
			return fmt.Errorf("failed to create alert config: %w", err)
		}
		return outwriter.PrintAlertConfigs([]schema.AlertConfig{created}, cfg)
	},
}

var alertsConfigListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List alert rules",
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		alerts, err := alertStore()
		if err != nil {
			return err
		}
		enabledOnly, _ := cmd.Flags().GetBool("enabled")
		configs, err := alerts.ListConfigs(rootCtx, enabledOnly)
		if err != nil {
			return fmt.Errorf("failed to list alert configs: %w", err)
		}
		return outwriter.PrintAlertConfigs(configs, cfg)
	},
}

var alertsConfigDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Delete an alert rule and its alerts",
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, args []string) error {
		alerts, err := alertStore()
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := alerts.DeleteConfig(rootCtx, id); err != nil {
			return fmt.Errorf("failed to delete alert config %d: %w", id, err)
		}
		cmd.Printf("Alert config %d deleted.\n", id)
		return nil
	},
}

var alertsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List triggered alerts, newest first",
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		alerts, err := alertStore()
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("status")
		status := schema.AlertStatus(raw)
		switch status {
		case "", schema.AlertActive, schema.AlertAcknowledged, schema.AlertResolved:
		default:
			return fmt.Errorf("invalid status %q. must be active, acknowledged, resolved", raw)
		}
		instances, err := alerts.ListInstances(rootCtx, status, cfg.ResultLimit)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		return outwriter.PrintAlertInstances(instances, cfg)
	},
}

// transitionCmd builds the ack and resolve commands.
func transitionCmd(use, short string, next schema.AlertStatus) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <id>",
		Short:   short,
		Args:    cobra.ExactArgs(1),
		PreRunE: sharedSetupWrapper,
		RunE: func(_ *cobra.Command, args []string) error {
			alerts, err := alertStore()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inst, err := core.TransitionAlert(rootCtx, alerts, id, next, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("alert %d: %w", id, err)
			}
			return outwriter.PrintAlertInstances([]schema.AlertInstance{inst}, cfg)
		},
	}
}

var (
	alertsAckCmd     = transitionCmd("ack", "Acknowledge an active alert", schema.AlertAcknowledged)
	alertsResolveCmd = transitionCmd("resolve", "Resolve an active or acknowledged alert", schema.AlertResolved)
)

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every enabled alert rule now",
	Long: `Run one threshold check: evaluate every enabled rule against its trailing
window and trigger alerts for new violations.

The serve command runs the same check every --check-interval.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		alerts, err := alertStore()
		if err != nil {
			return err
		}
		src := storeManager.GetDataSource()
		if src == nil {
			return fmt.Errorf("threshold check: %w", contract.ErrStoreDisabled)
		}
		result, err := core.CheckAlertThresholds(rootCtx, alerts, src, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("threshold check failed: %w", err)
		}
		return outwriter.PrintCheckResult(result, cfg)
	},
}
