package main

import (
	"github.com/spf13/cobra"
)

var demoLoad bool

func init() {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate the demo dataset",
		Long:  "Writes the demo diseases, symptoms, drugs and examinations with their relations to <data_dir>/processed as JSON and CSV.",
		Args:  cobra.NoArgs,
		Run:   runDemo,
	}
	cmd.Flags().BoolVar(&demoLoad, "load", false, "Also import the dataset into the graph")

	RootCmd.AddCommand(cmd)
}

func runDemo(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	paths, rep, err := engine.GenerateDemo(cmd.Context(), demoLoad)
	if err != nil {
		exitErr("demo", err)
	}
	out := map[string]any{"files": paths}
	if rep != nil {
		out["import"] = rep
	}
	printJSON(out)
}
