package schedule

import (
	"github.com/talgya/contagion-sim/internal/agents"
	"github.com/talgya/contagion-sim/internal/world"
)

// Occupancy is the number of agents booked into each site per slot,
// indexed by world.Calendar.Slot.
type Occupancy map[world.SiteRef][]int

// Tally counts, for every site and slot, the agents whose calendar cell
// references that site. Agents may be filtered by class; "" counts all.
func Tally(cal world.Calendar, roster *world.Roster, pop *agents.Population, class string) Occupancy {
	occ := make(Occupancy, roster.Len())
	for _, site := range roster.All() {
		occ[site.Ref] = make([]int, cal.Slots())
	}
	for _, a := range pop.Agents {
		if class != "" && a.Class != class {
			continue
		}
		for day := 0; day < cal.Days; day++ {
			for hour := 0; hour < cal.Hours; hour++ {
				if counts, ok := occ[a.Site(day, hour)]; ok {
					counts[cal.Slot(day, hour)]++
				}
			}
		}
	}
	return occ
}

// Peak returns the busiest slot count for a site.
func (o Occupancy) Peak(ref world.SiteRef) int {
	peak := 0
	for _, n := range o[ref] {
		if n > peak {
			peak = n
		}
	}
	return peak
}
