package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/persist"
	"github.com/ayusman/mudra/internal/store"
)

var drawingsCmd = &cobra.Command{
	Use:   "drawings",
	Short: "Manage saved drawings",
	Long:  `List, export and delete the drawings recorded in the local database.`,
}

var drawingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drawings, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		asJSON, _ := cmd.Flags().GetBool("json")

		k := store.Kind(kind)
		if k != "" && k != store.KindManual && k != store.KindAuto {
			return fmt.Errorf("unknown kind %q: want manual or auto", kind)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		drawings, err := st.Drawings().List(k)
		if err != nil {
			return fmt.Errorf("failed to list drawings: %w", err)
		}
		if asJSON {
			return printJSON(drawings)
		}
		if len(drawings) == 0 {
			fmt.Println("no drawings")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSIZE\tCREATED\tPATH")
		for _, d := range drawings {
			fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
				d.ID, d.Kind, d.Width, d.Height, d.CreatedAt.Local().Format("2006-01-02 15:04:05"), d.Path)
		}
		return w.Flush()
	},
}

var drawingsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a drawing as an A4 PDF next to its image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeStore, err := openPersister()
		if err != nil {
			return err
		}
		defer closeStore()

		out, err := p.ExportPDFFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("export %s: %w", args[0], err)
		}
		fmt.Println(out)
		return nil
	},
}

var drawingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete drawings and their files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeStore, err := openPersister()
		if err != nil {
			return err
		}
		defer closeStore()

		var failed []string
		for _, id := range args {
			if err := p.Delete(id); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
				failed = append(failed, id)
				continue
			}
			fmt.Printf("deleted %s\n", id)
		}
		if len(failed) > 0 {
			return fmt.Errorf("could not delete %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

func openPersister() (*persist.Persister, func(), error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	p, err := persist.New(persist.Config{
		Dir:        cfg.DrawingsDir(),
		AutoDir:    cfg.AutoSaveDir(),
		Format:     cfg.SaveFormat,
		AutoFormat: cfg.AutoSaveFormat,
		MaxAuto:    cfg.AutoSaveMaxFiles,
	}, st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, func() { st.Close() }, nil
}

func init() {
	rootCmd.AddCommand(drawingsCmd)
	drawingsCmd.AddCommand(drawingsListCmd)
	drawingsCmd.AddCommand(drawingsExportCmd)
	drawingsCmd.AddCommand(drawingsDeleteCmd)

	drawingsListCmd.Flags().String("kind", "", "only list manual or auto saves")
	drawingsListCmd.Flags().Bool("json", false, "print JSON")
}
