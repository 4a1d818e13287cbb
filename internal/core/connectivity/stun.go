package connectivity

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pion/stun"
)

// stunBinding 向 STUN 服务器发送 Binding Request，返回映射的外部地址
func stunBinding(ctx context.Context, server string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", server)
	if err != nil {
		return "", fmt.Errorf("dial stun server: %w", err)
	}
	defer conn.Close()

	// 上下文结束时关闭连接以打断阻塞读
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return "", fmt.Errorf("build stun request: %w", err)
	}
	if _, err := req.WriteTo(conn); err != nil {
		return "", fmt.Errorf("send stun request: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read stun response: %w", err)
		}
		res := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if err := res.Decode(); err != nil {
			continue
		}
		if res.TransactionID != req.TransactionID {
			continue
		}
		return mappedAddr(res)
	}
}

// mappedAddr 提取 XOR-MAPPED-ADDRESS，旧版服务器回退到 MAPPED-ADDRESS
func mappedAddr(res *stun.Message) (string, error) {
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(res); err == nil {
		return xor.String(), nil
	}
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(res); err == nil {
		return mapped.String(), nil
	}
	return "", errors.New("no mapped address in stun response")
}
