package track

import "sort"

// Compactor reduces the raw per-poll observation stream to one record per
// proximity episode. It holds at most one pending episode per vehicle; an
// episode finalizes when the vehicle's nearest stop changes or the ledger is
// flushed. Updates must be serialized by the caller.
type Compactor struct {
	ledger  map[string]*episode
	nextSeq uint64
}

type episode struct {
	best Observation
	seq  uint64 // ledger insertion order; flush tie-break
}

func NewCompactor() *Compactor {
	return &Compactor{ledger: make(map[string]*episode)}
}

// Observe feeds one observation. When the vehicle was already pending at a
// different stop, the displaced episode's best observation is returned with
// ok=true and the new observation opens the next episode immediately.
// A repeat at the same stop keeps whichever reading is nearer; on an exact
// distance tie the later reading wins.
func (c *Compactor) Observe(o Observation) (Observation, bool) {
	ep, exists := c.ledger[o.VehicleID]
	if !exists {
		c.ledger[o.VehicleID] = &episode{best: o, seq: c.nextSeq}
		c.nextSeq++
		return Observation{}, false
	}
	if o.Stop.Tag == ep.best.Stop.Tag {
		if o.DistanceFeet <= ep.best.DistanceFeet {
			ep.best = o
		}
		return Observation{}, false
	}
	out := ep.best
	ep.best = o
	return out, true
}

// Flush emits every pending episode ordered by effective timestamp ascending
// and clears the ledger. Timestamp ties emit in ledger insertion order, so
// the output is deterministic even though every vehicle in one poll cycle
// can share an effective timestamp. A second flush with no intervening
// observations emits nothing.
func (c *Compactor) Flush() []Observation {
	if len(c.ledger) == 0 {
		return nil
	}
	eps := make([]*episode, 0, len(c.ledger))
	for _, ep := range c.ledger {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool {
		ti, tj := eps[i].best.EffectiveTime, eps[j].best.EffectiveTime
		if ti.Equal(tj) {
			return eps[i].seq < eps[j].seq
		}
		return ti.Before(tj)
	})
	out := make([]Observation, len(eps))
	for i, ep := range eps {
		out[i] = ep.best
	}
	c.ledger = make(map[string]*episode)
	return out
}

// Pending reports the number of vehicles with an open episode.
func (c *Compactor) Pending() int { return len(c.ledger) }
