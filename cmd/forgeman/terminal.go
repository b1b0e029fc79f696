package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/forgeman/controlplane/internal/termdaemon"
	"github.com/forgeman/controlplane/pkg/models"
	"github.com/spf13/cobra"
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Open and attach to daemon-hosted terminals",
}

var terminalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new daemon-hosted terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		workDir, _ := cmd.Flags().GetString("workdir")
		shell, _ := cmd.Flags().GetString("shell")
		cols, _ := cmd.Flags().GetInt("cols")
		rows, _ := cmd.Flags().GetInt("rows")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		record, aerr := surface.CreateTerminal(projectID, models.TerminalConfig{
			Shell:   shell,
			WorkDir: workDir,
			Cols:    cols,
			Rows:    rows,
		})
		if aerr != nil {
			return fmt.Errorf("create terminal: %w", aerr)
		}

		fmt.Printf("created terminal %s (pid %d)\n", record.ID, record.PID)
		return nil
	},
}

var terminalWriteCmd = &cobra.Command{
	Use:   "write <terminal-id> <data>",
	Short: "Write data to a terminal's PTY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.WriteTerminal(args[0], args[1]); aerr != nil {
			return fmt.Errorf("write terminal: %w", aerr)
		}
		return nil
	},
}

var terminalResizeCmd = &cobra.Command{
	Use:   "resize <terminal-id> <cols> <rows>",
	Short: "Resize a terminal's PTY window",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var cols, rows int
		if _, err := fmt.Sscanf(args[1], "%d", &cols); err != nil {
			return fmt.Errorf("invalid cols %q", args[1])
		}
		if _, err := fmt.Sscanf(args[2], "%d", &rows); err != nil {
			return fmt.Errorf("invalid rows %q", args[2])
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		if aerr := surface.ResizeTerminal(args[0], cols, rows); aerr != nil {
			return fmt.Errorf("resize terminal: %w", aerr)
		}
		return nil
	},
}

var terminalKillCmd = &cobra.Command{
	Use:   "kill <terminal-id>",
	Short: "Kill a terminal's child process",
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

		if aerr := surface.KillTerminal(args[0]); aerr != nil {
			return fmt.Errorf("kill terminal: %w", aerr)
		}

		fmt.Printf("killed terminal %s\n", args[0])
		return nil
	},
}

var terminalBufferCmd = &cobra.Command{
	Use:   "get-buffer <terminal-id>",
	Short: "Print a terminal's replay buffer",
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

		data, aerr := surface.GetTerminalBuffer(args[0])
		if aerr != nil {
			return fmt.Errorf("get buffer: %w", aerr)
		}

		fmt.Print(data)
		return nil
	},
}

var terminalSubscribeCmd = &cobra.Command{
	Use:   "subscribe <terminal-id>",
	Short: "Stream a terminal's output until it exits",
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

		c, events, aerr := surface.SubscribeTerminal(args[0])
		if aerr != nil {
			return fmt.Errorf("subscribe terminal: %w", aerr)
		}
		defer c.Close()

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()

		for ev := range events {
			switch ev.Type {
			case termdaemon.MessageData:
				out.WriteString(ev.Data)
				out.Flush()
			case termdaemon.MessageExit:
				out.Flush()
				fmt.Printf("\nterminal %s exited (code %d)\n", args[0], ev.ExitCode)
				return nil
			}
		}
		return nil
	},
}

var terminalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List daemon-hosted terminals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		surface, err := newSurface(reg)
		if err != nil {
			return err
		}

		records, aerr := surface.ListTerminals(projectID)
		if aerr != nil {
			return fmt.Errorf("list terminals: %w", aerr)
		}

		for _, r := range records {
			fmt.Printf("%s\tproject=%s\tpid=%d\tsubscribers=%d\n", r.ID, r.ProjectID, r.PID, r.SubscriberCount)
		}
		return nil
	},
}

var terminalUnsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <terminal-id>",
	Short: "Detach from a terminal's output stream",
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

		if aerr := surface.UnsubscribeTerminal(args[0]); aerr != nil {
			return fmt.Errorf("unsubscribe terminal: %w", aerr)
		}
		return nil
	},
}

func init() {
	terminalCreateCmd.Flags().String("project", "", "project ID to associate the terminal with")
	terminalCreateCmd.Flags().String("workdir", "", "directory the PTY starts in")
	terminalCreateCmd.Flags().String("shell", "", "shell command to run (defaults to $SHELL)")
	terminalCreateCmd.Flags().Int("cols", 80, "PTY column count")
	terminalCreateCmd.Flags().Int("rows", 24, "PTY row count")
	terminalListCmd.Flags().String("project", "", "filter to terminals for this project ID")

	terminalCmd.AddCommand(terminalCreateCmd)
	terminalCmd.AddCommand(terminalWriteCmd)
	terminalCmd.AddCommand(terminalResizeCmd)
	terminalCmd.AddCommand(terminalKillCmd)
	terminalCmd.AddCommand(terminalBufferCmd)
	terminalCmd.AddCommand(terminalSubscribeCmd)
	terminalCmd.AddCommand(terminalUnsubscribeCmd)
	terminalCmd.AddCommand(terminalListCmd)
}
