package inspect

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ValentinKolb/dFlux/cmd/util"
	"github.com/ValentinKolb/dFlux/lib/immutable"
	"github.com/ValentinKolb/dFlux/lib/snapshot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// InspectCommands represents the inspect command group
	InspectCommands = &cobra.Command{
		Use:   "inspect",
		Short: "Inspect files written by dflux",
	}

	snapshotCmd = &cobra.Command{
		Use:   "snapshot [path...]",
		Short: "Print the header and the state of snapshot files",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := viper.GetString("format")
			for i, path := range args {
				if i > 0 {
					fmt.Println()
				}
				if err := printSnapshot(path, format); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "format"
	snapshotCmd.Flags().String(key, "yaml", util.WrapString("Output format of the state (yaml, json)"))

	InspectCommands.AddCommand(snapshotCmd)
}

func printSnapshot(path string, format string) error {
	data, header, err := snapshot.ReadFile(path)
	if err != nil {
		return err
	}

	// normalize json.Number values and sort the stores
	native := immutable.ToNative(immutable.FromNative(data))

	var out []byte
	switch format {
	case "yaml":
		out, err = yaml.Marshal(native)
	case "json":
		out, err = json.MarshalIndent(native, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("invalid format %s", format)
	}
	if err != nil {
		return err
	}

	fmt.Printf("# %s (version %d, serializer %s, %d bytes, %d stores)\n",
		path, header.Version, header.Serializer, header.Size, len(data))
	_, err = os.Stdout.Write(out)
	return err
}
