package store

import (
	"fmt"
	"os"
	"path/filepath"

	"mafia-host-be/internal/service/dto"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotStore 把每个房间的权威状态文档落盘
// 一个房间一个文件，按房间号命名，淘汰时删除，重启后按需恢复
type SnapshotStore struct {
	dataDir string
}

func NewSnapshotStore(dataDir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建快照目录失败: %w", err)
	}

	return &SnapshotStore{dataDir: dataDir}, nil
}

// Save 写入房间快照，覆盖旧文件
func (ss *SnapshotStore) Save(code string, doc dto.StateDocument) error {
	path, err := ss.snapshotPath(code)
	if err != nil {
		return err
	}

	data, err := jsonCodec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("编码房间 %s 快照失败: %w", code, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入房间 %s 快照失败: %w", code, err)
	}

	return nil
}

// Load 读取房间快照，不存在时返回 ok=false 而不是错误
func (ss *SnapshotStore) Load(code string) (dto.StateDocument, bool, error) {
	path, err := ss.snapshotPath(code)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("读取房间 %s 快照失败: %w", code, err)
	}

	doc := dto.NewStateDocument()
	if err := jsonCodec.Unmarshal(data, &doc); err != nil {
		return nil, false, fmt.Errorf("解码房间 %s 快照失败: %w", code, err)
	}

	return doc, true, nil
}

// Delete 删除房间快照，重复删除不报错
func (ss *SnapshotStore) Delete(code string) error {
	path, err := ss.snapshotPath(code)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除房间 %s 快照失败: %w", code, err)
	}

	return nil
}

// Exists 判断房间是否有落盘快照
func (ss *SnapshotStore) Exists(code string) bool {
	path, err := ss.snapshotPath(code)
	if err != nil {
		return false
	}

	_, statErr := os.Stat(path)

	return statErr == nil
}

// snapshotPath 拼出快照文件路径
// 房间号可能来自客户端，必须是纯数字才允许触盘
func (ss *SnapshotStore) snapshotPath(code string) (string, error) {
	if !validCode(code) {
		return "", fmt.Errorf("非法的房间号: %q", code)
	}

	return filepath.Join(ss.dataDir, "room_"+code+".json"), nil
}

func validCode(code string) bool {
	if len(code) != 4 {
		return false
	}

	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
