package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/siodb/iomgr/internal/engine"
)

var (
	setNextTridDatabase uint32
	setNextTridTable    uint64
	setNextTridValue    uint64
	setNextTridSystem   bool
)

var setNextTridCmd = &cobra.Command{
	Use:   "set-next-trid",
	Short: "ALTER TABLE ... SET NEXT_TRID: force a table's next-row-id counter",
	Long: `set-next-trid is the recovered ALTER TABLE ... SET NEXT_TRID admin
operation (spec §9 open question ii): it moves a table's user or system
TRID counter forward, refusing decreases, exercised here outside a client
connection via the same request handler serve uses.`,
	RunE: runSetNextTrid,
}

func init() {
	setNextTridCmd.Flags().Uint32Var(&setNextTridDatabase, "database", 0, "database id")
	setNextTridCmd.Flags().Uint64Var(&setNextTridTable, "table", 0, "table id")
	setNextTridCmd.Flags().Uint64Var(&setNextTridValue, "value", 0, "new next-TRID value")
	setNextTridCmd.Flags().BoolVar(&setNextTridSystem, "system", false, "set the system counter instead of the user counter")
	setNextTridCmd.MarkFlagRequired("database")
	setNextTridCmd.MarkFlagRequired("table")
	setNextTridCmd.MarkFlagRequired("value")
}

func runSetNextTrid(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	inst, err := openInstance(cfg)
	if err != nil {
		return fmt.Errorf("opening instance: %w", err)
	}
	defer inst.Close()

	handler := engine.NewHandler(inst, slog.Default())
	resp := handler.Handle(engine.Request{
		DatabaseID:  setNextTridDatabase,
		TableID:     setNextTridTable,
		Op:          engine.OpSetNextTrid,
		SetUser:     !setNextTridSystem,
		NextTridVal: setNextTridValue,
	})

	if len(resp.Header.StatusMessages) > 0 {
		msg := resp.Header.StatusMessages[0]
		return fmt.Errorf("%s: %s", msg.Code, msg.Message)
	}
	fmt.Println("OK")
	return nil
}
