package main

import (
	"context"
	"fmt"

	"github.com/forgeman/controlplane/pkg/models"
	"github.com/spf13/cobra"
)

var frameworkCmd = &cobra.Command{
	Use:   "framework",
	Short: "Check for and apply framework updates",
}

var frameworkInstallCmd = &cobra.Command{
	Use:   "install <project-id> <bundled-framework-dir>",
	Short: "Install the agent framework into a project for the first time",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("version")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		meta, aerr := surface.InstallFramework(args[0], args[1], version)
		if aerr != nil {
			return fmt.Errorf("install framework: %w", aerr)
		}

		project, aerr := surface.GetProject(args[0])
		if aerr != nil {
			return fmt.Errorf("install framework: %w", aerr)
		}

		fmt.Printf("installed framework %s into %s\n", meta.Version, project.Dir)
		return nil
	},
}

var frameworkCheckCmd = &cobra.Command{
	Use:   "check <version-url>",
	Short: "Check whether a newer framework version is published",
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

		remote, aerr := surface.CheckFrameworkUpdate(context.Background(), args[0])
		if aerr != nil {
			return fmt.Errorf("check remote version: %w", aerr)
		}

		fmt.Printf("remote version: %s\n", remote)
		return nil
	},
}

var frameworkUpdateCmd = &cobra.Command{
	Use:   "update <project-id> <archive-url> <expected-subdir> <version>",
	Short: "Download and apply a framework update",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		branch, _ := cmd.Flags().GetString("branch")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		aerr := surface.ApplyFrameworkUpdate(context.Background(), args[0], args[1], args[2], args[3], branch, func(p models.UpdateProgress) {
			if p.Percent > 0 {
				fmt.Printf("%s: %d%% %s\n", p.Stage, p.Percent, p.Message)
			} else {
				fmt.Printf("%s: %s\n", p.Stage, p.Message)
			}
		})
		if aerr != nil {
			return fmt.Errorf("apply framework update: %w", aerr)
		}
		return nil
	},
}

func init() {
	frameworkInstallCmd.Flags().String("version", "0.0.0", "version string to record for this install")
	frameworkUpdateCmd.Flags().String("branch", "", "source branch recorded in update metadata")

	frameworkCmd.AddCommand(frameworkInstallCmd)
	frameworkCmd.AddCommand(frameworkCheckCmd)
	frameworkCmd.AddCommand(frameworkUpdateCmd)
}
