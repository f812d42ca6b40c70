package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	g := &GlobalFlags{}
	cmds := &command{g: g}

	root := &cobra.Command{
		Use:   "hostr",
		Short: "hostr hosts and supervises named projects on this machine",
	}
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "path to hostr.toml")
	root.PersistentFlags().StringVar(&g.APIUrl, "api-url", "", "daemon API base URL (default http://127.0.0.1:8080/api)")
	root.PersistentFlags().DurationVar(&g.APITimeout, "api-timeout", 0, "HTTP client timeout")

	serveFlags := &ServeFlags{}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the hostr daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			if serveFlags.ConfigPath == "" {
				serveFlags.ConfigPath = g.ConfigPath
			}
			return runServe(*serveFlags)
		},
	}
	serve.Flags().StringVar(&serveFlags.ConfigPath, "config", "", "path to hostr.toml")
	serve.Flags().StringVar(&serveFlags.Listen, "listen", "", "listen address override")
	root.AddCommand(serve)

	root.AddCommand(nameCmd("create", "Create a new project", cmds.Create))
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects with their status",
		RunE:  func(_ *cobra.Command, _ []string) error { return cmds.List() },
	})
	root.AddCommand(nameCmd("start", "Start a project", cmds.Start))
	root.AddCommand(nameCmd("stop", "Stop a project", cmds.Stop))
	root.AddCommand(nameCmd("restart", "Restart a project", cmds.Restart))
	root.AddCommand(nameCmd("status", "Show a project's status", cmds.Status))

	logsFlags := &LogsFlags{}
	logs := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show recent project output",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmds.Logs(args[0], *logsFlags)
		},
	}
	logs.Flags().IntVarP(&logsFlags.Lines, "lines", "n", DefaultLogLines, "number of lines to show")
	root.AddCommand(logs)

	root.AddCommand(nameCmd("usage", "Show CPU/memory/uptime for a running project", cmds.Usage))
	root.AddCommand(nameCmd("install", "Install project dependencies from its manifest", cmds.Install))

	setCmdFlags := &SetCommandFlags{}
	setCmd := &cobra.Command{
		Use:   "set-command <name>",
		Short: "Change a project's run command",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmds.SetCommand(args[0], *setCmdFlags)
		},
	}
	setCmd.Flags().StringVar(&setCmdFlags.Command, "command", "", "new run command")
	_ = setCmd.MarkFlagRequired("command")
	root.AddCommand(setCmd)

	root.AddCommand(nameCmd("delete", "Stop and delete a project and its logs", cmds.Delete))
	return root
}

// nameCmd wraps the common "<verb> <name>" command shape.
func nameCmd(use, short string, fn func(string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return fn(args[0])
		},
	}
}
