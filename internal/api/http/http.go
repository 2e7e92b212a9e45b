package http

import (
	"fmt"

	"mafia-host-be/internal/api/http/websocket"
	"mafia-host-be/internal/state"

	"github.com/kataras/iris/v12"
)

func RunServer(appState *state.AppState) {
	app := iris.Default()

	app.HandleDir(
		"/",
		iris.Dir(appState.Cfg.StaticDir),
		iris.DirOptions{
			IndexName: "index.html",
			SPA:       true,
			Compress:  true,
		},
	)

	api := app.Party("/api/v1")

	api.Get("/ws/panel", websocket.PanelSocket(appState))
	api.Get("/ws/overlay", websocket.OverlaySocket(appState))

	api.Get("/rooms/{code:string}/qr", RoomQR(appState))
	api.Get("/players", SearchPlayers(appState))

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	app.Listen(addr)
}
