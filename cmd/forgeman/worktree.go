package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Inspect and merge a task's isolated worktree",
}

var worktreeStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Report a task worktree's existence and change summary",
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

		status, aerr := surface.WorktreeStatus(args[0])
		if aerr != nil {
			return fmt.Errorf("worktree status: %w", aerr)
		}

		if !status.Exists {
			fmt.Println("no worktree")
			return nil
		}

		fmt.Printf("path: %s\nbranch: %s\nbase: %s\ndirty: %v\nfiles changed: %d (+%d -%d)\ncommits ahead: %d\n",
			status.Path, status.Branch, status.BaseBranch, status.Dirty,
			status.FilesChanged, status.Additions, status.Deletions, status.CommitCount)
		return nil
	},
}

var worktreeDiffCmd = &cobra.Command{
	Use:   "diff <task-id>",
	Short: "Print a task worktree's diff against its base branch",
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

		diff, aerr := surface.WorktreeDiff(args[0])
		if aerr != nil {
			return fmt.Errorf("worktree diff: %w", aerr)
		}

		fmt.Print(diff)
		return nil
	},
}

var worktreeMergePreviewCmd = &cobra.Command{
	Use:   "merge-preview <task-id>",
	Short: "Classify the conflicts a merge would produce, without mutating anything",
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

		preview, aerr := surface.WorktreeMergePreview(args[0])
		if aerr != nil {
			return fmt.Errorf("worktree merge preview: %w", aerr)
		}

		if preview.Clean {
			fmt.Println("clean: no conflicts expected")
			return nil
		}

		fmt.Printf("worst severity: %s\n", preview.WorstSeverity())
		for _, c := range preview.Conflicts {
			fmt.Printf("  %s\tseverity=%s\tcritical=%v\n", c.Path, c.Severity, c.Critical)
		}
		return nil
	},
}

var worktreeMergeCmd = &cobra.Command{
	Use:   "merge <task-id>",
	Short: "Merge a task's worktree branch into its base branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stageOnly, _ := cmd.Flags().GetBool("stage-only")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		result, aerr := surface.WorktreeMerge(args[0], stageOnly)
		if aerr != nil {
			return fmt.Errorf("worktree merge: %w", aerr)
		}

		switch {
		case result.Staged:
			fmt.Println("staged: changes staged in the project directory, not committed")
		case result.Merged:
			fmt.Println("merged")
		default:
			fmt.Printf("conflict in %v (needs semantic merge: %v)\n", result.Conflicts, result.NeedsSemanticMerge)
		}
		return nil
	},
}

var worktreeDiscardCmd = &cobra.Command{
	Use:   "discard <task-id>",
	Short: "Remove a task's worktree and its branch",
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

		if aerr := surface.WorktreeDiscard(args[0]); aerr != nil {
			return fmt.Errorf("worktree discard: %w", aerr)
		}

		fmt.Printf("discarded worktree for task %s\n", args[0])
		return nil
	},
}

func init() {
	worktreeMergeCmd.Flags().Bool("stage-only", false, "stage the resolved merge in the project directory without committing")

	worktreeCmd.AddCommand(worktreeStatusCmd)
	worktreeCmd.AddCommand(worktreeDiffCmd)
	worktreeCmd.AddCommand(worktreeMergePreviewCmd)
	worktreeCmd.AddCommand(worktreeMergeCmd)
	worktreeCmd.AddCommand(worktreeDiscardCmd)
}
