package dto

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// 游戏状态文档是一个开放的字段映射，面板写入、悬浮层只读
// 字段名由面板决定，服务端只认识 avatars 这一个特殊字段
type StateDocument map[string]json.RawMessage

// 服务端关心的文档字段
const (
	FIELD_AVATARS = "avatars"
)

// 合并模式
const (
	MERGE_PARTIAL = "partial"
	MERGE_FULL    = "full"
)

func NewStateDocument() StateDocument {
	return make(StateDocument)
}

func (doc StateDocument) Clone() StateDocument {
	cloned := make(StateDocument, len(doc))
	for key, value := range doc {
		cloned[key] = value
	}

	return cloned
}

// Avatars 解码文档内的头像映射（login -> 图片引用）
// 字段缺失或损坏时返回空映射，不报错
func (doc StateDocument) Avatars() map[string]string {
	avatars := make(map[string]string)

	raw, ok := doc[FIELD_AVATARS]
	if !ok || len(raw) == 0 {
		return avatars
	}

	if err := jsonCodec.Unmarshal(raw, &avatars); err != nil {
		zap.L().Warn("头像字段损坏，按空处理", zap.Error(err))
		return make(map[string]string)
	}

	return avatars
}

func (doc StateDocument) setAvatars(avatars map[string]string) {
	if len(avatars) == 0 {
		return
	}

	raw, err := jsonCodec.Marshal(avatars)
	if err != nil {
		zap.L().Error("头像字段编码失败", zap.Error(err))
		return
	}

	doc[FIELD_AVATARS] = raw
}

// Merge 把一次更新合入权威文档，返回新文档，入参不被修改
//
// 规则（唯一的一处合并实现，传输层和存储层都复用它）：
//   - avatars 永远做并集：旧 login 不会丢，新值覆盖同名旧值
//   - partial 模式下其余字段按字段覆盖
//   - full 模式下整个文档被替换，但 avatars 仍然是并集
func Merge(doc StateDocument, fields StateDocument, mode string) StateDocument {
	var merged StateDocument

	switch mode {
	case MERGE_FULL:
		merged = fields.Clone()
	default:
		merged = doc.Clone()
		for key, value := range fields {
			if key == FIELD_AVATARS {
				continue
			}
			merged[key] = value
		}
	}

	union := avatarUnion(doc.Avatars(), fields.Avatars())
	delete(merged, FIELD_AVATARS)
	merged.setAvatars(union)

	return merged
}

// WithAvatarBase 在文档头像之下垫入一层全局头像目录
// 房间内的头像优先于全局目录
func WithAvatarBase(doc StateDocument, base map[string]string) StateDocument {
	layered := doc.Clone()

	union := avatarUnion(base, doc.Avatars())
	delete(layered, FIELD_AVATARS)
	layered.setAvatars(union)

	return layered
}

// AvatarPatch 构造一份只含单个头像变更的字段文档
func AvatarPatch(login, avatar string) StateDocument {
	patch := NewStateDocument()
	patch.setAvatars(map[string]string{login: avatar})

	return patch
}

// EncodeDocument 序列化字段文档
func EncodeDocument(doc StateDocument) ([]byte, error) {
	return jsonCodec.Marshal(doc)
}

func avatarUnion(older, newer map[string]string) map[string]string {
	union := make(map[string]string, len(older)+len(newer))

	for login, avatar := range older {
		union[login] = avatar
	}
	for login, avatar := range newer {
		union[login] = avatar
	}

	return union
}
