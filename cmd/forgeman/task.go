package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, start, stop, and review tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <project-id> <title> <description>",
	Short: "Create a task and start spec creation",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		task, aerr := surface.CreateTask(args[0], args[1], args[2])
		if aerr != nil {
			return fmt.Errorf("create task: %w", aerr)
		}

		fmt.Printf("created task %s (%s)\n", task.ID, task.Status)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		tasks, aerr := surface.ListTasks(args[0])
		if aerr != nil {
			return fmt.Errorf("list tasks: %w", aerr)
		}

		if len(tasks) == 0 {
			fmt.Println("no tasks")
			return nil
		}

		for _, t := range tasks {
			stuck := ""
			if t.Stuck {
				stuck = " (stuck)"
			}
			fmt.Printf("%s  %-12s %3d%%  %s%s\n", t.ID, t.Status, t.Progress.Percent, t.Title, stuck)
		}
		return nil
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Start the implementation agent for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		model, _ := cmd.Flags().GetString("model")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.StartTask(args[0], workers, model); aerr != nil {
			return fmt.Errorf("start task: %w", aerr)
		}

		fmt.Printf("started task %s\n", args[0])
		return nil
	},
}

var taskStopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Stop a running task's agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.StopTask(args[0]); aerr != nil {
			return fmt.Errorf("stop task: %w", aerr)
		}

		fmt.Printf("stopped task %s\n", args[0])
		return nil
	},
}

var taskReviewCmd = &cobra.Command{
	Use:   "review <task-id>",
	Short: "Record a human review verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		approve, _ := cmd.Flags().GetBool("approve")
		reject, _ := cmd.Flags().GetBool("reject")
		feedback, _ := cmd.Flags().GetString("feedback")

		if approve == reject {
			return fmt.Errorf("specify exactly one of --approve or --reject")
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.ReviewTask(args[0], approve, feedback); aerr != nil {
			return fmt.Errorf("review task: %w", aerr)
		}

		verdict := "rejected"
		if approve {
			verdict = "approved"
		}
		fmt.Printf("%s task %s\n", verdict, args[0])
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task, its spec directory, and its worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.DeleteTask(args[0]); aerr != nil {
			return fmt.Errorf("delete task: %w", aerr)
		}

		fmt.Printf("deleted task %s\n", args[0])
		return nil
	},
}

func init() {
	taskStartCmd.Flags().Int("workers", 1, "number of parallel implementation workers")
	taskStartCmd.Flags().String("model", "", "model override (defaults to the project's preferred model)")

	taskReviewCmd.Flags().Bool("approve", false, "approve the task's current work")
	taskReviewCmd.Flags().Bool("reject", false, "reject the task's current work")
	taskReviewCmd.Flags().String("feedback", "", "reviewer feedback recorded alongside the verdict")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskStopCmd)
	taskCmd.AddCommand(taskReviewCmd)
	taskCmd.AddCommand(taskDeleteCmd)
}
