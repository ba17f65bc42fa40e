package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect catalog contents: databases and tables",
}

var showDatabasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List every database registered in SYS_DATABASES",
	RunE:  runShowDatabases,
}

var showTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List every table registered in SYS_TABLES (system and user)",
	RunE:  runShowTables,
}

func init() {
	showCmd.AddCommand(showDatabasesCmd)
	showCmd.AddCommand(showTablesCmd)
}

func runShowDatabases(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	inst, err := openInstance(cfg)
	if err != nil {
		return fmt.Errorf("opening instance: %w", err)
	}
	defer inst.Close()

	cat, err := openCatalog(inst)
	if err != nil {
		return fmt.Errorf("opening system catalog: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCIPHER\tDESCRIPTION")
	cur := cat.Databases.NewCursor()
	for cur.Advance() {
		row, err := cur.Row()
		if err != nil {
			return fmt.Errorf("reading SYS_DATABASES row: %w", err)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row["id"].UInt, row["name"].Str, row["cipher_id"].Str, row["description"].String())
	}
	return w.Flush()
}

func runShowTables(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	inst, err := openInstance(cfg)
	if err != nil {
		return fmt.Errorf("opening instance: %w", err)
	}
	defer inst.Close()

	cat, err := openCatalog(inst)
	if err != nil {
		return fmt.Errorf("opening system catalog: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND")
	cur := cat.Tables.NewCursor()
	for cur.Advance() {
		row, err := cur.Row()
		if err != nil {
			return fmt.Errorf("reading SYS_TABLES row: %w", err)
		}
		kind := "system"
		if row["type"].UInt == 1 {
			kind = "user"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", row["id"].UInt, row["name"].Str, kind)
	}
	return w.Flush()
}
