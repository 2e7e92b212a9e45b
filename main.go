package main

import (
	"time"

	"mafia-host-be/internal/api/http"
	"mafia-host-be/internal/config"
	"mafia-host-be/internal/logger"
	"mafia-host-be/internal/playerdb"
	"mafia-host-be/internal/service"
	"mafia-host-be/internal/state"
	"mafia-host-be/internal/store"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	// 房间快照存储
	snapshots, err := store.NewSnapshotStore(cfg.DataDir)
	if err != nil {
		zap.S().Fatalf("初始化快照存储失败：%v", err)
	}

	// 全局头像目录，可选对接外部玩家目录服务
	directorySvc := service.NewDirectoryService(playerdb.NewClient(cfg.PlayerDBBaseURL))

	relaySvc := service.NewRelayService(
		snapshots,
		directorySvc,
		time.Duration(cfg.InactivityWindowSec)*time.Second,
	)
	defer relaySvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, relaySvc, directorySvc)

	// 启动服务器
	http.RunServer(appState)
}
