package topicswarm

import (
	"context"
	"errors"

	"github.com/dep2p/go-topicswarm/internal/core/peerbook"
	"github.com/dep2p/go-topicswarm/internal/core/topics"
	"github.com/dep2p/go-topicswarm/pkg/interfaces"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              主题
// ════════════════════════════════════════════════════════════════════════════

// Join 加入主题
//
// key 必须为 32 字节。未指定选项时默认同时通告与查找；
// 以不同选项重复加入会重启该主题的发现任务。
func (s *Swarm) Join(key []byte, opts ...JoinOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeLocked(); err != nil {
		return err
	}

	tk, err := types.TopicKeyFromBytes(key)
	if err != nil {
		return err
	}
	jo := types.DefaultJoinOptions()
	for _, opt := range opts {
		opt(&jo)
	}
	if jo.IsZero() {
		return &types.InvalidInputError{Field: "options", Reason: "announce and lookup are both disabled"}
	}

	_, restarted, err := s.topics.Join(tk, jo)
	if err != nil {
		if errors.Is(err, topics.ErrTableClosed) {
			return types.ErrDestroyed
		}
		return err
	}

	s.log.Info("加入主题", "topic", tk.ShortString(),
		"announce", jo.Announce, "lookup", jo.Lookup, "restarted", restarted)
	s.emit(s.emitters.joined, types.EvtTopicJoined{
		SwarmID:   s.id,
		Topic:     tk,
		Options:   jo,
		Restarted: restarted,
	})

	if jo.Lookup && s.book != nil {
		_, _ = s.group.Go("replay", func(ctx context.Context) error {
			s.replay(ctx, tk)
			return nil
		})
	}
	return nil
}

// Leave 离开主题；未加入的主题无效果
func (s *Swarm) Leave(key []byte) error {
	s.mu.Lock()
	if err := s.activeLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	tk, err := types.TopicKeyFromBytes(key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	left := s.topics.Leave(tk)
	s.mu.Unlock()

	if !left {
		return nil
	}
	s.log.Info("离开主题", "topic", tk.ShortString())
	s.emit(s.emitters.left, types.EvtTopicLeft{SwarmID: s.id, Topic: tk})

	if s.config.Swarm.LeaveClosesConnections {
		if err := s.conns.CloseTopic(tk); err != nil {
			s.log.Debug("关闭主题连接出错", "topic", tk.ShortString(), "err", err)
		}
	}
	return nil
}

// startDiscovery 主题表的任务启动函数
func (s *Swarm) startDiscovery(ctx context.Context, key types.TopicKey, opts types.JoinOptions) (interfaces.DiscoveryTask, error) {
	return s.discovery.Start(ctx, interfaces.StartRequest{
		Key:     key,
		Options: opts,
		Local:   s.localAddr,
		SelfID:  s.id,
	})
}

// peerDiscovered 发现结果：记录、通知并尝试连接
func (s *Swarm) peerDiscovered(key types.TopicKey, peer types.PeerInfo) {
	if s.isSelf(peer.Address()) {
		return
	}
	s.stats.discovered.Add(1)
	s.emit(s.emitters.discovered, types.EvtPeerDiscovered{SwarmID: s.id, Topic: key, Peer: peer})

	if s.book != nil && peer.Source != peerbook.Source {
		if err := s.book.Record(key, peer); err != nil {
			s.log.Debug("记录节点失败", "peer", peer.String(), "err", err)
		}
	}
	s.maybeConnect(peer)
}

// replay 以节点簿中该主题曾见过的节点预热连接
func (s *Swarm) replay(ctx context.Context, key types.TopicKey) {
	peers, err := s.book.Peers(key)
	if err != nil {
		s.log.Debug("读取节点簿失败", "topic", key.ShortString(), "err", err)
		return
	}
	if len(peers) > 0 {
		s.log.Debug("重放节点簿", "topic", key.ShortString(), "count", len(peers))
	}
	for _, p := range peers {
		if ctx.Err() != nil {
			return
		}
		s.maybeConnect(p)
	}
}
