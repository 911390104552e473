package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/discovery"
	"github.com/ayusman/mudra/internal/plugin"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find drawing boards advertised on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		asJSON, _ := cmd.Flags().GetBool("json")

		peers, err := discovery.Browse(cmd.Context(), timeout)
		if err != nil && len(peers) == 0 {
			return err
		}
		if asJSON {
			return printJSON(peers)
		}
		if len(peers) == 0 {
			fmt.Println("no boards found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tHOST\tURL")
		for _, p := range peers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Host, p.URL())
		}
		return w.Flush()
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List installed plugins and the events they handle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := plugin.NewManager(cfg.PluginDir)
		if err := m.Discover(); err != nil {
			return err
		}
		plugins := m.List()
		if len(plugins) == 0 {
			fmt.Printf("no plugins in %s\n", m.PluginDir())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tEVENTS\tDESCRIPTION")
		for _, p := range plugins {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				p.Manifest.Name, p.Manifest.Version, strings.Join(p.Manifest.Events, ","), p.Manifest.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(pluginsCmd)

	discoverCmd.Flags().Duration("timeout", discovery.DefaultBrowseTimeout, "how long to listen for answers")
	discoverCmd.Flags().Bool("json", false, "print JSON")
}
