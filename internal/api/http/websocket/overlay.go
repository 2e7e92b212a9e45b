package websocket

import (
	"time"

	"mafia-host-be/internal/service"
	"mafia-host-be/internal/service/dto"
	"mafia-host-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// OverlaySocket 处理悬浮层的 WebSocket 连接
// 握手帧是 OverlayJoin，房间号错误时回错误消息并等待重试
// 接入之后悬浮层只接收状态广播，发来的写入由房间协程静默丢弃
func OverlaySocket(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		clientIP := ctx.RemoteAddr()

		respCh := make(chan dto.ResponseWrapper, service.CONN_RESP_BUFFER)

		limiter := service.NewRateLimiter(
			time.Duration(appState.Cfg.RateLimitWindowSec)*time.Second,
			appState.Cfg.RateLimitCeiling,
		)

		// 房间号输错是可恢复错误：回一条错误消息，连接保持打开等待重试
		var session *service.RoomSession
		var stateDoc dto.StateDocument

		for session == nil {
			wrapper, ok := readHandshakeFrame(conn, clientIP)
			if !ok {
				return
			}

			if !limiter.Allow() {
				zap.L().Warn(
					"悬浮层消息超限，强制断开",
					zap.String("client_ip", clientIP),
				)
				return
			}

			req := dto.TryUnwrapOverlayJoinRequest(wrapper)
			if req == nil {
				zap.L().Debug(
					"等待OverlayJoin握手，忽略其他消息",
					zap.String("client_ip", clientIP),
					zap.String("req_type", wrapper.ReqType),
				)
				continue
			}

			joined, state, err := appState.RelaySvc.JoinOverlay(*req, respCh)
			if err != nil {
				zap.L().Warn(
					"悬浮层接入失败",
					zap.String("client_ip", clientIP),
					zap.String("code", req.Code),
					zap.Error(err),
				)

				conn.WriteJSON(dto.WrapErrResponse(err.Error()))
				continue
			}

			session = joined
			stateDoc = state
		}

		defer session.Detach()

		zap.L().Info(
			"悬浮层接入房间",
			zap.String("client_ip", clientIP),
			zap.String("code", session.Code),
			zap.String("conn_id", session.ConnID),
		)

		respCh <- dto.WrapResponse(dto.RESP_JOIN_ROOM, dto.JoinRoomResponse{
			Code:  session.Code,
			State: stateDoc,
		})

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		go writePump(conn, respCh, writeDoneCh, clientIP)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			if !limiter.Allow() {
				zap.L().Warn(
					"悬浮层消息超限，强制断开",
					zap.String("client_ip", clientIP),
					zap.String("code", session.Code),
				)
				break
			}

			wrapper, err := dto.DecodeRequest(msg)
			if err != nil {
				zap.L().Debug(
					"忽略无法解析的消息",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				continue
			}

			switch wrapper.ReqType {
			case dto.REQ_STATE_UPDATE, dto.REQ_STATE_FULL:
				update := dto.TryUnwrapStateUpdateRequest(wrapper)
				if update == nil {
					continue
				}

				mode := dto.MERGE_PARTIAL
				if wrapper.ReqType == dto.REQ_STATE_FULL {
					mode = dto.MERGE_FULL
				}

				// 非面板连接的写入在房间协程里被丢弃
				session.Update(mode, update.Fields, wrapper.Data)

			default:
				zap.L().Debug(
					"忽略未知消息类型",
					zap.String("client_ip", clientIP),
					zap.String("req_type", wrapper.ReqType),
				)
			}
		}

		zap.L().Info(
			"悬浮层连接断开",
			zap.String("client_ip", clientIP),
			zap.String("code", session.Code),
		)
	}
}
