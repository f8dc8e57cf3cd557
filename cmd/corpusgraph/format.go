package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/persistorai/corpusgraph/internal/models"
)

func formatJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode json: %v\n", err)
		os.Exit(1)
	}
}

func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			w := 0
			if i < len(widths) {
				w = widths[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cell)
		}
		fmt.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	printRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	printRow(seps)
	for _, row := range rows {
		printRow(row)
	}
}

func formatQuiet(s string) {
	if s == "" {
		return
	}
	fmt.Println(s)
}

// output writes v in the selected format. Table output needs columns, so
// callers that support it call formatTable themselves; here it falls back
// to JSON.
func output(v any, quietVal string) {
	switch flagFmt {
	case "quiet":
		formatQuiet(quietVal)
	default:
		formatJSON(v)
	}
}

func hitRow(h models.Hit) []string {
	cluster := ""
	if h.Cluster != nil {
		cluster = strconv.Itoa(*h.Cluster)
	}
	return []string{
		strconv.FormatInt(h.ID, 10),
		h.Type.String(),
		h.Content,
		fmt.Sprintf("%.4g", h.Rank),
		fmt.Sprintf("%.4f", h.Relevance),
		cluster,
	}
}

var hitHeaders = []string{"ID", "TYPE", "CONTENT", "RANK", "RELEVANCE", "CLUSTER"}

func printHitTable(hits []models.Hit) {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, hitRow(h))
	}
	formatTable(hitHeaders, rows)
}

func printClusterTable(clusters []models.Cluster) {
	var rows [][]string
	for _, c := range clusters {
		for _, m := range c.Members {
			rows = append(rows, hitRow(m))
		}
	}
	formatTable(hitHeaders, rows)
}

// hitIDs returns the hit ids one per line, for quiet output.
func hitIDs(hits []models.Hit) string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = strconv.FormatInt(h.ID, 10)
	}
	return strings.Join(ids, "\n")
}
