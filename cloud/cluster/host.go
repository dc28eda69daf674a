package cluster

import (
	"fmt"
)

// Host is a worker machine as known to the registry. Values are copied out
// of the registry, never shared.
type Host struct {
	Addr       string
	TotalSlots int
	FreeSlots  int
	// Relative speed, higher is faster.
	Speed      float64
	Responding bool
}

func (h Host) String() string {
	return fmt.Sprintf("%s(slots:%d/%d speed:%.3f responding:%t)",
		h.Addr, h.FreeSlots, h.TotalSlots, h.Speed, h.Responding)
}

// HostSorter orders hosts fastest first, then by address.
type HostSorter []Host

func (n HostSorter) Len() int      { return len(n) }
func (n HostSorter) Swap(i, j int) { n[i], n[j] = n[j], n[i] }
func (n HostSorter) Less(i, j int) bool {
	if n[i].Speed != n[j].Speed {
		return n[i].Speed > n[j].Speed
	}
	return n[i].Addr < n[j].Addr
}

type HostUpdateType int

const (
	HostAdded HostUpdateType = iota
	HostRemoved
)

func (t HostUpdateType) String() string {
	if t == HostAdded {
		return "HostAdded"
	}
	return "HostRemoved"
}

// HostUpdate represents a change to the catalog.
type HostUpdate struct {
	UpdateType HostUpdateType
	Addr       string
	Host       Host // Only set for adds
}

func (u HostUpdate) String() string {
	return fmt.Sprintf("%v %v", u.UpdateType, u.Addr)
}
