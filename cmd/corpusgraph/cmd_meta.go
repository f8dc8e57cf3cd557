package main

import (
	"github.com/spf13/cobra"
)

type metaEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Vertex *int64 `json:"vertex,omitempty"`
}

func newMetaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write collection or vertex metadata",
	}
	cmd.AddCommand(newMetaGetCmd(), newMetaSetCmd())
	return cmd
}

func newMetaGetCmd() *cobra.Command {
	var vertex int64
	var def string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a metadata value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, false)
			if err != nil {
				return err
			}
			defer closeStore()

			entry := metaEntry{Key: args[0]}
			if cmd.Flags().Changed("vertex") {
				entry.Vertex = &vertex
				entry.Value, err = s.GetVertexMeta(ctx, vertex, args[0])
			} else {
				entry.Value, err = s.GetMeta(ctx, args[0], def)
			}
			if err != nil {
				return err
			}

			printMeta(entry)
			return nil
		},
	}
	cmd.Flags().Int64Var(&vertex, "vertex", 0, "Vertex id; omit for collection metadata")
	cmd.Flags().StringVar(&def, "default", "", "Value printed when the collection key is unset")
	return cmd
}

func newMetaSetCmd() *cobra.Command {
	var vertex int64

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a metadata value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, !cmd.Flags().Changed("vertex"))
			if err != nil {
				return err
			}
			defer closeStore()

			entry := metaEntry{Key: args[0], Value: args[1]}
			if cmd.Flags().Changed("vertex") {
				entry.Vertex = &vertex
				err = s.SetVertexMeta(ctx, vertex, args[0], args[1])
			} else {
				err = s.SetMeta(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}

			printMeta(entry)
			return nil
		},
	}
	cmd.Flags().Int64Var(&vertex, "vertex", 0, "Vertex id; omit for collection metadata")
	return cmd
}

func printMeta(e metaEntry) {
	if flagFmt == "table" {
		formatTable([]string{"KEY", "VALUE"}, [][]string{{e.Key, e.Value}})
		return
	}
	output(e, e.Value)
}
