// Package peerbook 记录各主题上发现过的节点
//
// 记录以 "t/<主题 hex>/<host:port>" 为键存入存储引擎，带 TTL 自动过期。
// 加入主题时回放最近见过的节点作为连接候选，缩短首次发现的等待。
package peerbook

import (
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"

	"github.com/dep2p/go-topicswarm/config"
	"github.com/dep2p/go-topicswarm/internal/core/storage/engine"
	"github.com/dep2p/go-topicswarm/internal/core/storage/engine/badger"
	"github.com/dep2p/go-topicswarm/internal/core/storage/kv"
	"github.com/dep2p/go-topicswarm/internal/util/logger"
	"github.com/dep2p/go-topicswarm/pkg/types"
)

var log = logger.Logger("peerbook")

// 回放节点的来源标识
const Source = "peerbook"

var keyPrefix = []byte("t/")

// Record 一条节点记录
type Record struct {
	Host   string    `json:"host"`
	Port   int       `json:"port"`
	Source string    `json:"source,omitempty"`
	SeenAt time.Time `json:"seen_at"`
}

// Book 节点簿
type Book struct {
	eng       engine.Engine
	store     *kv.Store
	clock     clock.Clock
	ttl       time.Duration
	maxReplay int
}

// Open 按配置打开节点簿；Dir 为空时使用内存模式
func Open(cfg config.PeerBookConfig, clk clock.Clock) (*Book, error) {
	eng, err := badger.Open(badger.Options{Dir: cfg.Dir, GCInterval: 10 * time.Minute})
	if err != nil {
		return nil, fmt.Errorf("open peer book: %w", err)
	}
	return New(eng, cfg, clk), nil
}

// New 在已有引擎上创建节点簿；Close 时关闭引擎
func New(eng engine.Engine, cfg config.PeerBookConfig, clk clock.Clock) *Book {
	if clk == nil {
		clk = clock.New()
	}
	return &Book{
		eng:       eng,
		store:     kv.New(eng, keyPrefix),
		clock:     clk,
		ttl:       time.Duration(cfg.TTL),
		maxReplay: cfg.MaxReplay,
	}
}

func topicPrefix(key types.TopicKey) []byte {
	return []byte(key.String() + "/")
}

// Record 记录主题上发现的节点；同一地址覆盖旧记录
func (b *Book) Record(key types.TopicKey, peer types.PeerInfo) error {
	if err := peer.Validate(); err != nil {
		return err
	}
	rec := Record{Host: peer.Host, Port: peer.Port, Source: peer.Source, SeenAt: b.clock.Now()}
	k := append(topicPrefix(key), peer.Address().String()...)
	return b.store.PutJSON(k, rec, b.ttl)
}

// Records 主题上的全部记录，最近见过的在前
func (b *Book) Records(key types.TopicKey) ([]Record, error) {
	var out []Record
	err := b.store.Scan(topicPrefix(key), func(k, v []byte) error {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			log.Debug("跳过损坏的节点记录", "key", string(k), "err", err)
			return nil
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeenAt.After(out[j].SeenAt) })
	return out, nil
}

// Peers 回放用的节点，最多 MaxReplay 个
func (b *Book) Peers(key types.TopicKey) ([]types.PeerInfo, error) {
	recs, err := b.Records(key)
	if err != nil {
		return nil, err
	}
	if b.maxReplay > 0 && len(recs) > b.maxReplay {
		recs = recs[:b.maxReplay]
	}
	peers := make([]types.PeerInfo, 0, len(recs))
	for _, r := range recs {
		peers = append(peers, types.PeerInfo{Host: r.Host, Port: r.Port}.WithTopic(key, Source))
	}
	return peers, nil
}

// Forget 删除主题上的全部记录
func (b *Book) Forget(key types.TopicKey) (int, error) {
	return b.store.DeletePrefix(topicPrefix(key))
}

// Remove 删除单条记录
func (b *Book) Remove(key types.TopicKey, addr types.Address) error {
	return b.store.Delete(append(topicPrefix(key), addr.String()...))
}

// Close 关闭节点簿及其存储引擎
func (b *Book) Close() error {
	return b.eng.Close()
}
