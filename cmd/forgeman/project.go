package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Register, list, and remove projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a project directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		project, aerr := surface.AddProject(args[0], name)
		if aerr != nil {
			return fmt.Errorf("register project: %w", aerr)
		}

		fmt.Printf("registered %s as %s\n", project.Dir, project.ID)
		if project.FrameworkPath == "" {
			fmt.Println("no framework directory found; run 'forgeman framework install' to install one")
		}
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		projects := surface.ListProjects()
		if len(projects) == 0 {
			fmt.Println("no registered projects")
			return nil
		}

		for _, p := range projects {
			framework := "(no framework)"
			if p.HasFramework() {
				framework = p.FrameworkPath
			}
			fmt.Printf("%s  %-20s %-40s %s\n", p.ID, p.Name, p.Dir, framework)
		}
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <project-id>",
	Short: "Unregister a project",
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

		if aerr := surface.RemoveProject(args[0]); aerr != nil {
			return fmt.Errorf("remove project: %w", aerr)
		}

		fmt.Printf("removed %s\n", args[0])
		return nil
	},
}

func init() {
	projectAddCmd.Flags().String("name", "", "display name (defaults to the directory name)")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRemoveCmd)
}
