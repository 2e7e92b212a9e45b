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

// PanelSocket 处理控制面板的 WebSocket 连接
// 首帧必须是 PanelInit，之后面板通过该连接写入房间状态
func PanelSocket(appState *state.AppState) iris.Handler {
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

		wrapper, ok := readHandshakeFrame(conn, clientIP)
		if !ok {
			return
		}

		req := dto.TryUnwrapPanelInitRequest(wrapper)
		if req == nil {
			zap.L().Error(
				"首次请求不是PanelInit类型",
				zap.String("client_ip", clientIP),
				zap.String("req_type", wrapper.ReqType),
			)
			return
		}

		respCh := make(chan dto.ResponseWrapper, service.CONN_RESP_BUFFER)

		session, stateDoc, err := appState.RelaySvc.BindPanel(*req, respCh)
		if err != nil {
			zap.L().Warn(
				"面板接入失败",
				zap.String("client_ip", clientIP),
				zap.String("code", req.Code),
				zap.Error(err),
			)

			conn.WriteJSON(dto.WrapErrResponse(err.Error()))
			return
		}

		defer session.Detach()

		zap.L().Info(
			"面板接入房间",
			zap.String("client_ip", clientIP),
			zap.String("code", session.Code),
			zap.String("conn_id", session.ConnID),
		)

		respCh <- dto.WrapResponse(dto.RESP_ROOM_CREATED, dto.RoomCreatedResponse{
			Code:  session.Code,
			State: stateDoc,
		})

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		go writePump(conn, respCh, writeDoneCh, clientIP)

		limiter := service.NewRateLimiter(
			time.Duration(appState.Cfg.RateLimitWindowSec)*time.Second,
			appState.Cfg.RateLimitCeiling,
		)

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

			// 超限的连接只断开一次
			if !limiter.Allow() {
				zap.L().Warn(
					"面板消息超限，强制断开",
					zap.String("client_ip", clientIP),
					zap.String("code", session.Code),
				)
				break
			}

			wrapper, err := dto.DecodeRequest(msg)
			if err != nil {
				// 格式错误的消息只忽略，不断开连接
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

				if err := session.Update(mode, update.Fields, wrapper.Data); err != nil {
					respCh <- dto.WrapErrResponse(err.Error())
				}

			case dto.REQ_AVATAR_CHANGE:
				change := dto.TryUnwrapAvatarChangeRequest(wrapper)
				if change == nil {
					continue
				}

				if err := session.ChangeAvatar(change.Login, change.Avatar); err != nil {
					respCh <- dto.WrapErrResponse(err.Error())
				}

			default:
				zap.L().Debug(
					"忽略未知消息类型",
					zap.String("client_ip", clientIP),
					zap.String("req_type", wrapper.ReqType),
				)
			}
		}

		zap.L().Info(
			"面板连接断开",
			zap.String("client_ip", clientIP),
			zap.String("code", session.Code),
		)
	}
}
