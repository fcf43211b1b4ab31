// cmd/notify-server/registry.go
package main

import (
	"fmt"
	"strings"

	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/validation"
	"loyalty-notify/pkg/registry"

	"github.com/spf13/cobra"
)

var registryPath string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the activity registry exposed to the workflow engine",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the registry is well formed and its schemas compile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return fmt.Errorf("load registry: %w", err)
		}
		if err := reg.Validate(); err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed (%d activities).\n", len(reg.Activities))
		return nil
	},
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered activities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return fmt.Errorf("load registry: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, a := range reg.Activities {
			fmt.Fprintf(out, "%-24s %-12s %s\n", a.TaskType, a.ImplementationStatus, strings.Join(a.ErrorCodes, ","))
		}
		return nil
	},
}

func init() {
	registryCmd.PersistentFlags().StringVar(&registryPath, "registry", "configs/activity-registry.json", "path to the activity registry")
	registryCmd.AddCommand(registryValidateCmd, registryListCmd)
}

// inputSchemas compiles the input schema of each task type found in the
// registry. A missing registry file disables variable validation.
func inputSchemas(path string, log logger.Logger, taskTypes ...string) (map[string]*validation.Schema, error) {
	schemas := make(map[string]*validation.Schema, len(taskTypes))
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded, job variables will not be schema checked", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return schemas, nil
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("activity registry %s: %w", path, err)
	}

	for _, taskType := range taskTypes {
		activity, ok := reg.Find(taskType)
		if !ok {
			log.Warn("task type missing from activity registry", map[string]interface{}{"taskType": taskType})
			continue
		}
		schema, err := activity.CompileInputSchema()
		if err != nil {
			return nil, fmt.Errorf("compile input schema for %s: %w", taskType, err)
		}
		schemas[taskType] = schema
	}
	return schemas, nil
}
