package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryDepth   int
	pathMaxDepth int
	similarK     int
	clearYes     bool
)

func init() {
	queryCmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "List relationships around an entity",
		Args:  cobra.ExactArgs(1),
		Run:   runQuery,
	}
	queryCmd.Flags().IntVarP(&queryDepth, "depth", "d", 1, "Hops to follow (1-3)")

	pathCmd := &cobra.Command{
		Use:   "path <start> <end>",
		Short: "Find the shortest paths between two entities",
		Args:  cobra.ExactArgs(2),
		Run:   runPath,
	}
	pathCmd.Flags().IntVar(&pathMaxDepth, "max-depth", 3, "Maximum path length (1-5)")

	similarCmd := &cobra.Command{
		Use:   "similar <name>",
		Short: "Find entities with similar names (sqlite backend)",
		Args:  cobra.ExactArgs(1),
		Run:   runSimilar,
	}
	similarCmd.Flags().IntVar(&similarK, "k", 5, "Number of results")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entity, relationship and document from the graph",
		Args:  cobra.NoArgs,
		Run:   runClear,
	}
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")

	RootCmd.AddCommand(queryCmd, pathCmd, similarCmd, clearCmd,
		&cobra.Command{
			Use:   "stats",
			Short: "Show entity and relationship counts",
			Args:  cobra.NoArgs,
			Run:   runStats,
		},
		&cobra.Command{
			Use:   "docs",
			Short: "List tracked documents (sqlite backend)",
			Args:  cobra.NoArgs,
			Run:   runDocs,
		},
	)
}

func runQuery(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	edges, err := engine.Query(cmd.Context(), args[0], queryDepth)
	if err != nil {
		exitErr("query", err)
	}
	printJSON(map[string]any{"entity": args[0], "count": len(edges), "data": edges})
}

func runPath(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	paths, err := engine.Path(cmd.Context(), args[0], args[1], pathMaxDepth)
	if err != nil {
		exitErr("path", err)
	}
	printJSON(map[string]any{"start": args[0], "end": args[1], "path_count": len(paths), "data": paths})
}

func runSimilar(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	res, err := engine.Similar(cmd.Context(), args[0], similarK)
	if err != nil {
		exitErr("similar", err)
	}
	printJSON(res)
}

func runStats(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	stats, err := engine.Statistics(cmd.Context())
	if err != nil {
		exitErr("statistics", err)
	}
	printJSON(stats)
}

func runDocs(cmd *cobra.Command, args []string) {
	engine := openEngine(cmd)
	defer engine.Close()

	docs, err := engine.Documents(cmd.Context())
	if err != nil {
		exitErr("documents", err)
	}
	printJSON(docs)
}

func runClear(cmd *cobra.Command, args []string) {
	if !clearYes {
		fmt.Fprint(os.Stderr, "Delete the whole knowledge graph? [y/N] ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(os.Stderr, "aborted")
			return
		}
	}

	engine := openEngine(cmd)
	defer engine.Close()

	if err := engine.Clear(cmd.Context()); err != nil {
		exitErr("clear", err)
	}
	fmt.Println("graph cleared")
}
