package dto

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 请求类型
// 消息集合是封闭的：面板和悬浮层只会发送这里列出的类型
// 未知类型由连接层忽略，不断开连接
const (
	REQ_PANEL_INIT    = "PanelInit"
	REQ_OVERLAY_JOIN  = "OverlayJoin"
	REQ_STATE_UPDATE  = "StateUpdate"
	REQ_STATE_FULL    = "StateFull"
	REQ_AVATAR_CHANGE = "AvatarChange"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`
}

// 面板初始化：code 为空时分配新房间号，非空时回收既有房间
type PanelInitRequest struct {
	Code string `json:"code,omitempty"`
}

type OverlayJoinRequest struct {
	Code string `json:"code"`
}

// 状态更新的载荷就是字段文档本身
// 原始字节保留在 wrapper.Data 里，转发时按原样回放
type StateUpdateRequest struct {
	Fields StateDocument `json:"-"`
}

type AvatarChangeRequest struct {
	Login  string `json:"login"`
	Avatar string `json:"avatar"`
}

func TryUnwrapPanelInitRequest(wrapper RequestWrapper) *PanelInitRequest {
	if wrapper.ReqType != REQ_PANEL_INIT {
		return nil
	}

	var req PanelInitRequest

	// PanelInit 允许空载荷（等价于申请新房间）
	if len(wrapper.Data) > 0 {
		if err := jsonCodec.Unmarshal(wrapper.Data, &req); err != nil {
			zap.L().Error(
				"Failed to unwrap PanelInitRequest",
				zap.Error(err),
				zap.Any("wrapper", wrapper),
			)
			return nil
		}
	}

	return &req
}

func TryUnwrapOverlayJoinRequest(wrapper RequestWrapper) *OverlayJoinRequest {
	if wrapper.ReqType != REQ_OVERLAY_JOIN {
		return nil
	}

	var req OverlayJoinRequest

	if err := jsonCodec.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap OverlayJoinRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

// TryUnwrapStateUpdateRequest 同时接受 StateUpdate 和 StateFull
// 两者载荷同构，只有合并模式不同，由调用方按 ReqType 区分
func TryUnwrapStateUpdateRequest(wrapper RequestWrapper) *StateUpdateRequest {
	if wrapper.ReqType != REQ_STATE_UPDATE && wrapper.ReqType != REQ_STATE_FULL {
		return nil
	}

	fields := NewStateDocument()

	if err := jsonCodec.Unmarshal(wrapper.Data, &fields); err != nil {
		zap.L().Error(
			"Failed to unwrap StateUpdateRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &StateUpdateRequest{Fields: fields}
}

func TryUnwrapAvatarChangeRequest(wrapper RequestWrapper) *AvatarChangeRequest {
	if wrapper.ReqType != REQ_AVATAR_CHANGE {
		return nil
	}

	var req AvatarChangeRequest

	if err := jsonCodec.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"Failed to unwrap AvatarChangeRequest",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

// 响应类型
const (
	RESP_ERROR = "Error"

	RESP_ROOM_CREATED = "RoomCreated"
	RESP_JOIN_ROOM    = "JoinRoom"
	RESP_STATE_UPDATE = "StateUpdate"
	RESP_STATE_FULL   = "StateFull"
	RESP_PANEL_LEFT   = "PanelLeft"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
}

type RoomCreatedResponse struct {
	Code  string        `json:"code"`
	State StateDocument `json:"state"`
}

type JoinRoomResponse struct {
	Code  string        `json:"code"`
	State StateDocument `json:"state"`
}

type PanelLeftResponse struct {
	Code string `json:"code"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}

func DecodeRequest(payload []byte) (RequestWrapper, error) {
	var wrapper RequestWrapper
	err := jsonCodec.Unmarshal(payload, &wrapper)
	return wrapper, err
}
