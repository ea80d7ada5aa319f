package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghetolay/WowBot/internal/urlcodec"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <link>",
	Short: "Decode the state link carried by an entity message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := urlcodec.Decode(args[0])
		if err != nil {
			return err
		}
		id, typeID, ext, ok := urlcodec.SplitHost(data.ID)
		if !ok || ext != urlcodec.Ext {
			return fmt.Errorf("%w: host %q", urlcodec.ErrMalformed, data.ID)
		}

		params := make(map[string][]string, data.Params.Len())
		for _, p := range data.Params {
			params[p.Key] = p.Values
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":     id,
			"type":   typeID,
			"path":   data.Path,
			"params": params,
		})
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
