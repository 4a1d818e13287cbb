package topicswarm

import "sync"

// live 进程内存活的 Swarm
//
// New 时加入，到达 Destroyed 时移除。
var live = &liveSet{swarms: make(map[*Swarm]struct{})}

type liveSet struct {
	mu     sync.Mutex
	swarms map[*Swarm]struct{}
}

func (l *liveSet) add(s *Swarm) {
	l.mu.Lock()
	l.swarms[s] = struct{}{}
	l.mu.Unlock()
}

func (l *liveSet) remove(s *Swarm) {
	l.mu.Lock()
	delete(l.swarms, s)
	l.mu.Unlock()
}

// ActiveSwarms 尚未到达 Destroyed 的 Swarm 快照
func ActiveSwarms() []*Swarm {
	live.mu.Lock()
	defer live.mu.Unlock()
	out := make([]*Swarm, 0, len(live.swarms))
	for s := range live.swarms {
		out = append(out, s)
	}
	return out
}
