package service

import (
	"strings"
	"sync"

	"mafia-host-be/internal/playerdb"

	"go.uber.org/zap"
)

// DirectoryService 维护跨房间的全局头像目录
// 任何房间里设置过的头像都进入目录，新建房间时作为底图垫入
type DirectoryService struct {
	mu      sync.RWMutex
	avatars map[string]string

	remote *playerdb.Client
}

func NewDirectoryService(remote *playerdb.Client) *DirectoryService {
	return &DirectoryService{
		avatars: make(map[string]string),
		remote:  remote,
	}
}

// Snapshot 复制一份当前目录
func (ds *DirectoryService) Snapshot() map[string]string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	snapshot := make(map[string]string, len(ds.avatars))
	for login, avatar := range ds.avatars {
		snapshot[login] = avatar
	}

	return snapshot
}

// Put 记录一个头像并异步镜像到远端目录
func (ds *DirectoryService) Put(login, avatar string) {
	if login == "" {
		return
	}

	ds.mu.Lock()
	ds.avatars[login] = avatar
	ds.mu.Unlock()

	if ds.remote != nil && ds.remote.Enabled() {
		go ds.remote.UpsertPlayer(login, avatar)
	}
}

// PutAll 批量记录头像，房间快照恢复时回填目录
func (ds *DirectoryService) PutAll(avatars map[string]string) {
	if len(avatars) == 0 {
		return
	}

	ds.mu.Lock()
	for login, avatar := range avatars {
		if login == "" {
			continue
		}
		ds.avatars[login] = avatar
	}
	ds.mu.Unlock()
}

// Search 按前缀在本地目录查找，找不到时透传远端
func (ds *DirectoryService) Search(pattern string) map[string]string {
	matched := make(map[string]string)

	ds.mu.RLock()
	for login, avatar := range ds.avatars {
		if pattern == "" || strings.HasPrefix(login, pattern) {
			matched[login] = avatar
		}
	}
	ds.mu.RUnlock()

	if len(matched) > 0 || ds.remote == nil || !ds.remote.Enabled() {
		return matched
	}

	records, err := ds.remote.SearchPlayers(pattern)
	if err != nil {
		zap.L().Warn("远端玩家目录查询失败", zap.Error(err))
		return matched
	}

	for _, rec := range records {
		matched[rec.Login] = rec.Avatar
	}

	return matched
}
