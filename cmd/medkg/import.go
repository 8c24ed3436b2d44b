package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/demo"
)

var importEntities bool

func init() {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import triples (.csv, .jsonl) or dataset entities (.json) into the graph",
		Long: `Import a triple file into the knowledge graph.

CSV files carry the header head,head_type,relation,tail,tail_type,confidence,source;
JSONL files hold one triple object per line. Rows that fail validation are
counted and reported, the rest are imported. With --entities the file is a
dataset JSON and only its entities are loaded.`,
		Args: cobra.ExactArgs(1),
		Run:  runImport,
	}
	cmd.Flags().BoolVar(&importEntities, "entities", false, "Import entities from a dataset JSON file")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	var (
		rep *demo.Report
		err error
	)
	if importEntities {
		rep, err = engine.ImportEntitiesFile(cmd.Context(), args[0])
	} else {
		rep, err = engine.ImportTriplesFile(cmd.Context(), args[0])
	}
	if err != nil {
		exitErr("import", err)
	}
	printJSON(rep)
	if rep.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d rows failed\n", rep.Failed)
	}
}
