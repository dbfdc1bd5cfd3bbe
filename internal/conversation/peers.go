package conversation

import "sync"

// peerSet records the peers a V1 introduction has already been published for.
type peerSet struct {
	mu    sync.RWMutex
	peers map[string]struct{}
}

func newPeerSet(peers ...string) *peerSet {
	s := &peerSet{peers: make(map[string]struct{}, len(peers))}
	for _, p := range peers {
		s.peers[p] = struct{}{}
	}
	return s
}

func (s *peerSet) has(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.peers[address]
	return ok
}

func (s *peerSet) add(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[address] = struct{}{}
}
