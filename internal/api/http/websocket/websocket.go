package websocket

import (
	"net/http"
	"time"

	"mafia-host-be/internal/service/dto"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// NOTE: 暂时允许所有来源
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	// 心跳间隔，单位秒
	HEARTBEAT_INTERVAL = 30 * time.Second
	// 心跳超时时间，单位秒
	HEARTBEAT_TIMEOUT = 45 * time.Second
)

var heartbeatHandler = func(conn *websocket.Conn) func(string) error {
	return func(string) error {
		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		return nil
	}
}

// writePump 负责一条连接的全部写操作：心跳和响应下发
// 面板和悬浮层共用，writeDoneCh 关闭后退出
func writePump(
	conn *websocket.Conn,
	respCh <-chan dto.ResponseWrapper,
	writeDoneCh <-chan struct{},
	clientIP string,
) {
	ticker := time.NewTicker(HEARTBEAT_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-writeDoneCh:
			zap.L().Debug(
				"WebSocket写入协程退出",
				zap.String("client_ip", clientIP),
			)
			return

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Error(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

			conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

		case resp, ok := <-respCh:
			if !ok {
				zap.L().Info(
					"响应通道已关闭，退出写协程",
					zap.String("client_ip", clientIP),
				)
				return
			}

			if err := conn.WriteJSON(resp); err != nil {
				zap.L().Error(
					"发送消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				return
			}

			zap.L().Debug(
				"发送消息",
				zap.String("client_ip", clientIP),
				zap.String("resp_type", resp.RespType),
			)
		}
	}
}

// readHandshakeFrame 在握手阶段读一帧并解出请求信封
// 读失败或载荷不是合法 JSON 时返回 false，连接由调用方关闭
func readHandshakeFrame(conn *websocket.Conn, clientIP string) (dto.RequestWrapper, bool) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		zap.L().Error(
			"读取握手请求失败",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return dto.RequestWrapper{}, false
	}

	wrapper, err := dto.DecodeRequest(msg)
	if err != nil {
		zap.L().Error(
			"解析握手请求失败",
			zap.String("client_ip", clientIP),
			zap.Error(err),
		)
		return dto.RequestWrapper{}, false
	}

	return wrapper, true
}
