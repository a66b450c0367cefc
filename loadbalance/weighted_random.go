package loadbalance

import (
	"math/rand/v2"

	"luci-rpc/registry"
)

// WeightedRandomBalancer picks proportionally to Instance.Weight. Weights
// below 1 count as 1.
type WeightedRandomBalancer struct{}

func weight(inst registry.Instance) int {
	if inst.Weight < 1 {
		return 1
	}
	return inst.Weight
}

func (b *WeightedRandomBalancer) Pick(_ string, instances []registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += weight(v)
	}

	r := rand.IntN(totalWeight)
	for i := range instances {
		r -= weight(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}

	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "weighted"
}
