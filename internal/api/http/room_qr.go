package http

import (
	"strings"

	"mafia-host-be/internal/state"

	"github.com/kataras/iris/v12"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// RoomQR 生成悬浮层加入链接的二维码
// 主持人把二维码投屏出来，观众扫码即可打开对应房间的悬浮层
func RoomQR(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		if !appState.RelaySvc.RoomExists(code) {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": "房间不存在",
			})
			return
		}

		joinURL := strings.TrimRight(appState.Cfg.PublicBaseURL, "/") + "/overlay/" + code

		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			zap.L().Error(
				"生成二维码失败",
				zap.String("code", code),
				zap.Error(err),
			)

			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(iris.Map{
				"error": "生成二维码失败",
			})
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}

// SearchPlayers 按 login 前缀查询头像目录
// 面板用它做玩家输入时的自动补全
func SearchPlayers(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		pattern := ctx.URLParam("login")

		ctx.JSON(iris.Map{
			"players": appState.DirectorySvc.Search(pattern),
		})
	}
}
