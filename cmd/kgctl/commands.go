package main

import (
	"fmt"

	"knowledge_graph_backend/internal/seed"
	"knowledge_graph_backend/pkg/database"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the knowledge graph tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.close()

			if err := database.AutoMigrate(env.db); err != nil {
				return fmt.Errorf("database.AutoMigrate > %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration completed.")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	command := &cobra.Command{
		Use:   "seed",
		Short: "Import the foundational programming concepts and their relationships",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSeedGraph(file)
			if err != nil {
				return err
			}

			env, err := openEnvironment(true)
			if err != nil {
				return err
			}
			defer env.close()

			result, err := seed.Apply(cmd.Context(), env.graphService(), g)
			if err != nil {
				return fmt.Errorf("seed.Apply > %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Concepts: %d created, %d already present\n", result.ConceptsCreated, result.ConceptsSkipped)
			fmt.Fprintf(out, "Relationships: %d created, %d skipped\n", result.RelationshipsCreated, result.RelationshipsSkipped)
			return nil
		},
	}
	command.Flags().StringVarP(&file, "file", "f", "", "seed YAML file (defaults to the built-in graph)")
	return command
}

func newValidateGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-graph",
		Short: "Report cycles, orphaned concepts, weak relationships and deep chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.close()

			result, err := env.graphService().ValidateGraph(cmd.Context())
			if err != nil {
				return fmt.Errorf("ValidateGraph > %w", err)
			}

			out := cmd.OutOrStdout()
			for _, e := range result.Errors {
				fmt.Fprintf(out, "ERROR   %s\n", e)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "WARNING [%s] %s\n", w.Type, w.Message)
			}
			fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(result.Errors), len(result.Warnings))
			if !result.IsValid {
				return fmt.Errorf("knowledge graph is invalid")
			}
			return nil
		},
	}
}

func newRecalculateCommand() *cobra.Command {
	var userID string

	command := &cobra.Command{
		Use:   "recalculate",
		Short: "Recompute derived mastery fields for every concept of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(false)
			if err != nil {
				return err
			}
			defer env.close()

			svc, err := env.masteryService()
			if err != nil {
				return err
			}
			count, err := svc.RecalculateUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("RecalculateUser > %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recalculated %d mastery record(s) for user %s\n", count, userID)
			return nil
		},
	}
	command.Flags().StringVar(&userID, "user", "", "user id")
	_ = command.MarkFlagRequired("user")
	return command
}
