package luci

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ZoneChoices is what a zone picker needs: every zone and every network it
// may reference.
type ZoneChoices struct {
	Zones    []Zone
	Networks []Network
}

// LoadZoneChoices fetches zones and networks concurrently. Either failure
// fails the whole load.
func (a *API) LoadZoneChoices(ctx context.Context) (*ZoneChoices, error) {
	var choices ZoneChoices

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zones, err := a.Zones(ctx)
		choices.Zones = zones
		return err
	})
	g.Go(func() error {
		networks, err := a.NetworkInterfaces.Call(ctx)
		choices.Networks = networks
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &choices, nil
}

// LookupZone returns the zone called name.
func (zc *ZoneChoices) LookupZone(name string) (*Zone, bool) {
	for i := range zc.Zones {
		if zc.Zones[i].Name == name {
			return &zc.Zones[i], true
		}
	}
	return nil, false
}

// LookupNetwork returns the network called name.
func (zc *ZoneChoices) LookupNetwork(name string) (*Network, bool) {
	for i := range zc.Networks {
		if zc.Networks[i].Name == name {
			return &zc.Networks[i], true
		}
	}
	return nil, false
}

// NetworksOf returns the known networks of zone, skipping names that no
// longer exist.
func (zc *ZoneChoices) NetworksOf(zone Zone) []Network {
	var out []Network
	for _, name := range zone.Networks {
		if n, ok := zc.LookupNetwork(name); ok {
			out = append(out, *n)
		}
	}
	return out
}

// Names returns the zone names sorted, as the picker lists them.
func (zc *ZoneChoices) Names() []string {
	names := make([]string, len(zc.Zones))
	for i, z := range zc.Zones {
		names[i] = z.Name
	}
	sort.Strings(names)
	return names
}

// Overview is the data behind the traffic rules page.
type Overview struct {
	Hosts map[string]HostHint
	ZoneChoices
}

// Overview fetches host hints, zones and networks in one batched round trip.
func (a *API) Overview(ctx context.Context) (*Overview, error) {
	b := a.client.NewBatch()
	hints := a.HostHints.Add(b)
	zones := a.FirewallZones.Add(b, "firewall")
	networks := a.NetworkInterfaces.Add(b)

	if err := b.Send(ctx); err != nil {
		return nil, err
	}

	var (
		ov  Overview
		err error
	)
	if ov.Hosts, err = hints.Await(ctx); err != nil {
		return nil, err
	}
	if ov.Zones, err = zones.Await(ctx); err != nil {
		return nil, err
	}
	if ov.Networks, err = networks.Await(ctx); err != nil {
		return nil, err
	}
	return &ov, nil
}
