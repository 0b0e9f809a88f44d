package cluster

import (
	"context"
	"sort"

	u "github.com/araddon/gou"
	"github.com/lytics/grid"
)

// NewPeer callback invoked once per discovered grid peer.
type NewPeer func(p *peerEntry)

// peerList tracks which grid peers have been seen, with a stable,
// totally ordered id per peer so worker names are deterministic.
type peerList struct {
	l       []*peerEntry
	entries map[string]*peerEntry
}

type peerEntry struct {
	name  string
	found bool
	id    int
}

func newPeerList() *peerList {
	return &peerList{
		l:       make([]*peerEntry, 0),
		entries: make(map[string]*peerEntry),
	}
}

// watchPeers runs the long-lived discovery loop: current peers first,
// then membership changes, invoking onNew for every peer not seen
// before.  Lost peers are dropped from the list; the coordination
// protocol itself has no crash tolerance, so a lost worker peer means
// the run will not complete and the coordinator's bound has to fire.
func (p *peerList) watchPeers(ctx context.Context, client *grid.Client, onNew NewPeer) {

	peers, watch, err := client.QueryWatch(ctx, grid.Peers)
	if err != nil {
		u.Errorf("peer watch failed: %v", err)
		return
	}

	for _, e := range p.l {
		e.found = false
	}

	for _, peer := range peers {
		if e, ok := p.entries[peer.Name()]; ok {
			e.found = true
			continue
		}
		e := &peerEntry{
			name:  peer.Name(),
			id:    p.NextId(),
			found: true,
		}
		p.Add(e)
		u.Debugf("found peer %d %v", e.id, peer.Name())
		onNew(e)
	}

	for _, e := range p.l {
		if !e.found {
			u.Warnf("dropped peer %+v", e)
			p.Remove(e)
		}
	}

	for event := range watch {
		switch event.Type {
		case grid.WatchError:
			u.Errorf("peer watch error %v", event)
		case grid.EntityLost:
			for _, e := range p.l {
				if e.name == event.Peer() {
					p.Remove(e)
				}
			}
		case grid.EntityFound:
			peer := event.Peer()
			if e, ok := p.entries[peer]; ok {
				e.found = true
				continue
			}
			e := &peerEntry{
				name:  peer,
				id:    p.NextId(),
				found: true,
			}
			p.Add(e)
			u.Debugf("found peer %d %v", e.id, peer)
			onNew(e)
		}
	}
}

func (s *peerList) Remove(e *peerEntry) {
	l := make([]*peerEntry, 0, len(s.l)-1)
	for _, le := range s.l {
		if le.name != e.name {
			l = append(l, le)
		}
	}
	s.l = l
	delete(s.entries, e.name)
}

func (s *peerList) Add(e *peerEntry) {
	s.l = append(s.l, e)
	s.entries[e.name] = e
}

func (s *peerList) NextId() int {
	sort.Sort(s)
	if len(s.l) > 0 {
		return s.l[len(s.l)-1].id + 1
	}
	return 1
}

func (s *peerList) Len() int {
	return len(s.l)
}

func (s *peerList) Swap(i, j int) {
	s.l[i], s.l[j] = s.l[j], s.l[i]
}

func (s *peerList) Less(i, j int) bool {
	return s.l[i].id < s.l[j].id
}
