package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/Aaditya-brrt/adminflow/internal/log"
	internal_storage "github.com/Aaditya-brrt/adminflow/internal/storage"
	"github.com/Aaditya-brrt/adminflow/pkg/models"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new workflow (CLI)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			userID, _ := cmd.Flags().GetString("user")
			wfType, _ := cmd.Flags().GetString("type")
			description, _ := cmd.Flags().GetString("description")
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			createWorkflow(svc, args[0], userID, wfType, description)
		},
	}
	createCmd.Flags().String("user", "", "Owner user id")
	createCmd.Flags().String("type", "schedule", "Workflow type (schedule|trigger)")
	createCmd.Flags().String("description", "", "Workflow description (the prompt the model executes)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all workflows (CLI)",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, err := cmd.Flags().GetString("db")
			if err != nil {
				log.GetLogger().Errorf("Error retrieving db flag: %v", err)
				os.Exit(1)
			}
			userID, _ := cmd.Flags().GetString("user")
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			listWorkflows(svc, userID)
		},
	}
	listCmd.Flags().String("user", "", "Filter by owner user id")

	activateCmd := &cobra.Command{
		Use:   "activate [id]",
		Short: "Activate a workflow, arming its schedule",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			setActive(svc, args[0], true)
		},
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate [id]",
		Short: "Deactivate a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			setActive(svc, args[0], false)
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs [workflow-id]",
		Short: "List the recent runs of a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr, _ := cmd.Flags().GetString("db")
			store := initStore(dbConnStr)
			defer store.Close()
			svc := service.NewWorkflowService(store, log.GetLogger())
			listRuns(svc, args[0])
		},
	}

	rootCmd.AddCommand(createCmd, listCmd, activateCmd, deactivateCmd, runsCmd)
}

func createWorkflow(svc *service.WorkflowService, name, userID, wfType, description string) {
	wf, err := svc.Create(models.Workflow{
		Name:        name,
		UserID:      userID,
		Type:        models.WorkflowType(wfType),
		Description: description,
	})
	if err != nil {
		log.GetLogger().Errorf("Failed to create workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to create workflow: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Created workflow '%s' with ID %s\n", wf.Name, wf.ID)
}

func setActive(svc *service.WorkflowService, id string, active bool) {
	wf, err := svc.SetActive(id, active)
	if err != nil {
		log.GetLogger().Errorf("Failed to update workflow: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to update workflow: %v\n", err)
		os.Exit(1)
	}
	if wf.Active && wf.NextRunAt != nil {
		fmt.Fprintf(os.Stdout, "Workflow %s activated, next run at %s\n", wf.ID, wf.NextRunAt.Format(time.RFC3339))
	} else if wf.Active {
		fmt.Fprintf(os.Stdout, "Workflow %s activated\n", wf.ID)
	} else {
		fmt.Fprintf(os.Stdout, "Workflow %s deactivated\n", wf.ID)
	}
}

func listWorkflows(svc *service.WorkflowService, userID string) {
	workflows, err := svc.List(userID)
	if err != nil {
		log.GetLogger().Errorf("Failed to list workflows: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list workflows: %v\n", err)
		os.Exit(1)
	}
	if len(workflows) == 0 {
		fmt.Fprintf(os.Stdout, "No workflows found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Workflows:\n")
	for _, wf := range workflows {
		fmt.Fprintf(os.Stdout, "- ID: %s, Name: %s, Type: %s, Active: %t, Created: %s\n",
			wf.ID, wf.Name, wf.Type, wf.Active, wf.CreatedAt.Format(time.RFC3339))
	}
}

func listRuns(svc *service.WorkflowService, workflowID string) {
	runs, err := svc.GetRuns(workflowID)
	if err != nil {
		log.GetLogger().Errorf("Failed to list runs: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stdout, "No runs found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Runs:\n")
	for _, run := range runs {
		line := fmt.Sprintf("- ID: %s, Status: %s, Started: %s", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))
		if run.ErrorMessage != "" {
			line += ", Error: " + run.ErrorMessage
		}
		fmt.Fprintln(os.Stdout, line)
	}
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
