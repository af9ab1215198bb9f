package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AndrewDonelson/ormpack"
	"github.com/AndrewDonelson/ormpack/internal/codec"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file|-]",
	Short: "Decode a payload and print it as JSON",
	Long: `Decode a payload and print it as JSON. Extension values are resolved;
records are printed as {"type_id", "type", "fields"} since their Go types
are not known here. Reads stdin when no file or "-" is given.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		if viper.GetBool("hex") {
			data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
			if err != nil {
				return fmt.Errorf("decode hex input: %w", err)
			}
		}
		out, err := inspect(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	inspectCmd.Flags().Bool("hex", false, "input is hex text instead of raw bytes")
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

// inspect decodes data with record tags left raw and renders it as JSON.
func inspect(data []byte) ([]byte, error) {
	v, err := ormpack.New(ormpack.Config{}).DeserializeRaw(data)
	if err != nil {
		return nil, err
	}
	return codec.JSON{}.Marshal(jsonable(v))
}

// jsonable rewrites maps with non-string keys, which encoding/json rejects.
func jsonable(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonable(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonable(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = jsonable(e)
		}
		return out
	case ormpack.RawRecord:
		t.Fields = jsonable(t.Fields).([]any)
		return t
	}
	return v
}
