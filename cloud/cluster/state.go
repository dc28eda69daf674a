package cluster

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// State is a catalog of hosts keyed by address. Not thread-safe.
type State struct {
	hosts       map[string]Host
	nopCheckCnt int
}

func NewState(hosts []Host) *State {
	s := &State{hosts: make(map[string]Host)}
	s.SetAndDiff(hosts)
	return s
}

// SetAndDiff replaces the catalog with newState and returns the adds and
// removes, sorted by address. Hosts present in both keep the new values.
func (s *State) SetAndDiff(newState []Host) []HostUpdate {
	added := []Host{}
	old := s.hosts
	s.hosts = make(map[string]Host, len(newState))
	for _, h := range newState {
		if _, exists := old[h.Addr]; exists {
			delete(old, h.Addr)
		} else if _, dup := s.hosts[h.Addr]; !dup {
			added = append(added, h)
		}
		s.hosts[h.Addr] = h
	}
	removed := []string{}
	for addr := range old {
		removed = append(removed, addr)
	}
	sort.Slice(added, func(i, j int) bool { return added[i].Addr < added[j].Addr })
	sort.Strings(removed)

	outgoing := []HostUpdate{}
	for _, h := range added {
		log.Infof("HostAdded update: %s", h)
		outgoing = append(outgoing, HostUpdate{UpdateType: HostAdded, Addr: h.Addr, Host: h})
	}
	for _, addr := range removed {
		log.Infof("HostRemoved update: %s", addr)
		outgoing = append(outgoing, HostUpdate{UpdateType: HostRemoved, Addr: addr})
	}

	if len(outgoing) > 0 {
		log.Infof("Hosts added: %d, removed: %d, now: %d (%d refreshes with no change)",
			len(added), len(removed), len(s.hosts), s.nopCheckCnt)
		s.nopCheckCnt = 0
	} else {
		s.nopCheckCnt++
	}
	return outgoing
}

func (s *State) Get(addr string) (Host, bool) {
	h, ok := s.hosts[addr]
	return h, ok
}

// Put updates a single host in place, for status refreshes.
func (s *State) Put(h Host) {
	s.hosts[h.Addr] = h
}

func (s *State) Remove(addr string) bool {
	_, ok := s.hosts[addr]
	delete(s.hosts, addr)
	return ok
}

func (s *State) Len() int {
	return len(s.hosts)
}

// Sorted returns a copy of the catalog, fastest first.
func (s *State) Sorted() []Host {
	out := make([]Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	sort.Sort(HostSorter(out))
	return out
}
