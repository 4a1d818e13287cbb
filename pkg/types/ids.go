package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ============================================================================
//                              TopicKey - 主题密钥
// ============================================================================

// TopicKeySize 主题密钥长度（字节）
const TopicKeySize = 32

// TopicKey 主题密钥
//
// 对等节点通过相同的 TopicKey 相互发现，内容对 swarm 来说是不透明的。
type TopicKey [TopicKeySize]byte

// TopicKeyFromBytes 从字节切片创建 TopicKey
//
// 长度必须恰好为 TopicKeySize，否则返回 *InvalidInputError。
func TopicKeyFromBytes(b []byte) (TopicKey, error) {
	var k TopicKey
	if len(b) != TopicKeySize {
		return k, &InvalidInputError{
			Field:  "key",
			Reason: fmt.Sprintf("topic key must be %d bytes, got %d", TopicKeySize, len(b)),
		}
	}
	copy(k[:], b)
	return k, nil
}

// ParseTopicKey 从十六进制字符串解析 TopicKey
func ParseTopicKey(s string) (TopicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return TopicKey{}, &InvalidInputError{Field: "key", Reason: "topic key is not hex: " + err.Error()}
	}
	return TopicKeyFromBytes(b)
}

// RandomTopicKey 生成随机 TopicKey
func RandomTopicKey() TopicKey {
	var k TopicKey
	_, _ = rand.Read(k[:])
	return k
}

// Bytes 返回密钥副本
func (k TopicKey) Bytes() []byte {
	b := make([]byte, TopicKeySize)
	copy(b, k[:])
	return b
}

// String 返回十六进制表示
func (k TopicKey) String() string {
	return hex.EncodeToString(k[:])
}

// ShortString 返回前 8 个十六进制字符，用于日志
func (k TopicKey) ShortString() string {
	return hex.EncodeToString(k[:4])
}

// IsZero 检查是否为零值
func (k TopicKey) IsZero() bool {
	return k == TopicKey{}
}
