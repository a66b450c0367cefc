package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"luci-rpc/client"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <object> <method> [json-args]",
	Short: "Invoke a ubus method and print its result",
	Example: `  luci-rpc call system board
  luci-rpc call uci get '{"config":"firewall","type":"zone"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		named := map[string]any{}
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &named); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}

		cn, err := dial(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer cn.close()

		// Named arguments become positional ones in a fixed order.
		params := make([]string, 0, len(named))
		for name := range named {
			params = append(params, name)
		}
		sort.Strings(params)
		values := make([]any, len(params))
		for i, name := range params {
			values[i] = named[name]
		}

		proc := client.Declare(cn.client, client.Procedure[any]{
			Object: args[0],
			Method: args[1],
			Params: params,
		})
		result, err := proc.Call(cmd.Context(), values...)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [objects...]",
	Short: "List published ubus objects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cn, err := dial(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer cn.close()

		if len(args) == 0 {
			names, err := cn.client.ListObjects(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		entries, err := cn.client.List(cmd.Context(), args...)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

func init() {
	RootCmd.AddCommand(callCmd)
	RootCmd.AddCommand(listCmd)
}
