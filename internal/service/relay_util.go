package service

import (
	"encoding/json"

	"mafia-host-be/internal/service/dto"
)

// roomRequestAction 是投递给房间协程的请求信封
// 同一时刻只会有一个字段非空
type roomRequestAction struct {
	BindPanel    *bindPanelAction
	JoinOverlay  *joinOverlayAction
	StateUpdate  *stateUpdateAction
	AvatarChange *avatarChangeAction
	Detach       *detachAction
	EvictCheck   *struct{}
	Done         *struct{}
}

type bindPanelAction struct {
	ConnID string
	RespCh chan dto.ResponseWrapper
	AckCh  chan attachResult
}

type joinOverlayAction struct {
	ConnID string
	RespCh chan dto.ResponseWrapper
	AckCh  chan attachResult
}

type attachResult struct {
	State dto.StateDocument
	Err   error
}

type stateUpdateAction struct {
	ConnID string
	Mode   string
	Fields dto.StateDocument
	// 客户端发来的原始载荷，转发给悬浮层时按原样回放
	Raw json.RawMessage
}

type avatarChangeAction struct {
	ConnID string
	Login  string
	Avatar string
}

type detachAction struct {
	ConnID string
}

// roomConn 是一条已接入房间的连接
type roomConn struct {
	id     string
	respCh chan dto.ResponseWrapper
}

func (rc *roomConn) push(resp dto.ResponseWrapper) bool {
	select {
	case rc.respCh <- resp:
		return true
	default:
		return false
	}
}
