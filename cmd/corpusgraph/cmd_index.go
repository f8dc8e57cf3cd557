package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/service"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file.yaml>...",
		Short: "Index documents from YAML files",
		Long: "Index documents into the collection, creating it if needed. Each file holds\n" +
			"one or more YAML documents, each either a document mapping (name, body, terms)\n" +
			"or a list of them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs []models.Document
			for _, path := range args {
				fileDocs, err := readDocumentFile(path)
				if err != nil {
					return err
				}
				docs = append(docs, fileDocs...)
			}

			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, true)
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := service.NewIndexService(s, logger).IndexDocuments(ctx, docs)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				formatTable([]string{"INDEXED", "SKIPPED", "TERMS LINKED", "TERMS FILTERED"}, [][]string{{
					strconv.Itoa(res.DocumentsIndexed),
					strconv.Itoa(res.DocumentsSkipped),
					strconv.Itoa(res.TermsLinked),
					strconv.Itoa(res.TermsFiltered),
				}})
				return nil
			}
			output(res, strconv.Itoa(res.DocumentsIndexed))
			return nil
		},
	}
}

// readDocumentFile decodes every YAML document in the file at path.
func readDocumentFile(path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return decodeDocuments(f, path)
}

// decodeDocuments reads a YAML stream whose documents are either a single
// document mapping or a sequence of them.
func decodeDocuments(r io.Reader, source string) ([]models.Document, error) {
	var docs []models.Document

	dec := yaml.NewDecoder(r)
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", source, err)
		}
		if len(node.Content) == 0 {
			continue
		}

		switch root := node.Content[0]; root.Kind {
		case yaml.SequenceNode:
			var batch []models.Document
			if err := root.Decode(&batch); err != nil {
				return nil, fmt.Errorf("parsing %s line %d: %w", source, root.Line, err)
			}
			docs = append(docs, batch...)
		case yaml.MappingNode:
			var doc models.Document
			if err := root.Decode(&doc); err != nil {
				return nil, fmt.Errorf("parsing %s line %d: %w", source, root.Line, err)
			}
			docs = append(docs, doc)
		default:
			return nil, fmt.Errorf("parsing %s line %d: expected a document or a list of documents", source, root.Line)
		}
	}
}

type unindexResult struct {
	Removed []string `json:"removed"`
	Missing []string `json:"missing,omitempty"`
}

func newUnindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unindex <name>...",
		Short: "Remove documents and their orphaned terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, false)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := service.NewIndexService(s, logger)
			res := unindexResult{Removed: []string{}}

			for _, name := range args {
				err := svc.UnindexDocument(ctx, name)
				if errors.Is(err, models.ErrNotFound) {
					logger.WithField("document", name).Warn("document not found, skipping")
					res.Missing = append(res.Missing, name)
					continue
				}
				if err != nil {
					return fmt.Errorf("unindexing %q: %w", name, err)
				}
				res.Removed = append(res.Removed, name)
			}

			if flagFmt == "table" {
				var rows [][]string
				for _, name := range res.Removed {
					rows = append(rows, []string{name, "removed"})
				}
				for _, name := range res.Missing {
					rows = append(rows, []string{name, "missing"})
				}
				formatTable([]string{"DOCUMENT", "STATUS"}, rows)
				return nil
			}
			output(res, strings.Join(res.Removed, "\n"))
			return nil
		},
	}
}
