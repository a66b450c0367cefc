package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"luci-rpc/luci"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Open a session and print its id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cn, err := dial(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer cn.close()

		sid, err := luci.New(cn.client).Authenticate(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sid)
		return nil
	},
}

var hintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "Show the host hints LuCI offers in address pickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cn, err := dial(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer cn.close()

		hints, err := luci.New(cn.client).HostHints.Call(cmd.Context())
		if err != nil {
			return err
		}

		macs := make([]string, 0, len(hints))
		for mac := range hints {
			macs = append(macs, mac)
		}
		sort.Strings(macs)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MAC\tNAME\tIPV4\tIPV6")
		for _, mac := range macs {
			h := hints[mac]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mac, h.Name, strings.Join(h.IPv4, ","), strings.Join(h.IPv6, ","))
		}
		return w.Flush()
	},
}

var zonesBatched bool

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Show firewall zones with their networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cn, err := dial(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer cn.close()

		api := luci.New(cn.client)
		var choices *luci.ZoneChoices
		if zonesBatched {
			ov, err := api.Overview(cmd.Context())
			if err != nil {
				return err
			}
			choices = &ov.ZoneChoices
		} else {
			choices, err = api.LoadZoneChoices(cmd.Context())
			if err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ZONE\tINPUT\tOUTPUT\tFORWARD\tMASQ\tNETWORKS")
		for _, name := range choices.Names() {
			zone, _ := choices.LookupZone(name)

			var networks []string
			for _, n := range choices.NetworksOf(*zone) {
				state := "down"
				if n.Up {
					state = "up"
				}
				networks = append(networks, fmt.Sprintf("%s(%s)", n.Name, state))
			}
			if len(networks) == 0 {
				networks = append(networks, "(empty)")
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				zone.Name, zone.Input, zone.Output, zone.Forward, zone.Masq, strings.Join(networks, " "))
		}
		return w.Flush()
	},
}

func init() {
	zonesCmd.Flags().BoolVar(&zonesBatched, "batch", false, "Fetch everything in one batched request")

	RootCmd.AddCommand(loginCmd)
	RootCmd.AddCommand(hintsCmd)
	RootCmd.AddCommand(zonesCmd)
}
