package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	medkg "github.com/yangmaomao2025-netizen/disease-knowledge-graph"
	"github.com/yangmaomao2025-netizen/disease-knowledge-graph/extraction"
)

var (
	extractFile   string
	extractSource string
	extractStore  bool
	extractForce  bool
	extractFormat string
	extractLines  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract triples from text or a document",
		Long: `Extract entities, relations and triples.

The input is the text argument, a document given with --file (txt, md, pdf,
xlsx) or, when neither is present, stdin. With --lines every stdin line is
a separate text and the batch is processed concurrently.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runExtract,
	}
	cmd.Flags().StringVar(&extractFile, "file", "", "Document to extract from")
	cmd.Flags().StringVar(&extractSource, "source", "", "Source label recorded on every triple")
	cmd.Flags().BoolVar(&extractStore, "store", false, "Add the triples to the knowledge graph")
	cmd.Flags().BoolVar(&extractForce, "force", false, "Re-process a stored document even if unchanged")
	cmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "Output format: json, csv or jsonl")
	cmd.Flags().BoolVar(&extractLines, "lines", false, "Treat each stdin line as a separate text")

	RootCmd.AddCommand(cmd)
}

func runExtract(cmd *cobra.Command, args []string) {
	switch extractFormat {
	case "json", extraction.FormatCSV, extraction.FormatJSONL:
	default:
		exitErr("format", fmt.Errorf("%w: %s", extraction.ErrUnsupportedFormat, extractFormat))
	}

	engine := openEngine(cmd)
	defer engine.Close()
	ctx := cmd.Context()

	if extractFile != "" {
		res, err := engine.ExtractFile(ctx, extractFile, medkg.FileOptions{
			Source: extractSource,
			Store:  extractStore,
			Force:  extractForce,
		})
		if err != nil {
			exitErr("extract file", err)
		}
		if extractFormat == "json" {
			res.Items = nil
			printJSON(res)
			return
		}
		writeTriples(engine, res.Triples)
		return
	}

	texts, err := inputTexts(args, os.Stdin)
	if err != nil {
		exitErr("read input", err)
	}

	items := engine.ExtractBatch(ctx, texts, extractSource)
	var triples []extraction.Triple
	for _, it := range items {
		if !it.OK() {
			fmt.Fprintf(os.Stderr, "warning: text %d: %s\n", it.Index, it.Error)
			continue
		}
		triples = append(triples, it.Result.Triples...)
	}

	stored := 0
	if extractStore {
		if stored, err = engine.StoreTriples(ctx, triples); err != nil {
			exitErr("store triples", err)
		}
	}

	if extractFormat != "json" {
		writeTriples(engine, triples)
		return
	}
	if len(items) == 1 && items[0].OK() && !extractStore {
		printJSON(items[0].Result)
		return
	}
	printJSON(map[string]any{"items": items, "stored": stored})
}

// inputTexts returns the argument text, or stdin as one text or as lines.
func inputTexts(args []string, stdin io.Reader) ([]string, error) {
	if len(args) == 1 {
		return []string{args[0]}, nil
	}
	if !extractLines {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, extraction.ErrEmptyText
		}
		return []string{string(data)}, nil
	}

	var texts []string
	sc := bufio.NewScanner(stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, extraction.ErrEmptyText
	}
	return texts, nil
}

func writeTriples(engine *medkg.Engine, triples []extraction.Triple) {
	out, err := engine.Export(triples, extractFormat)
	if err != nil {
		exitErr("export", err)
	}
	fmt.Println(out)
}
