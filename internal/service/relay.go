package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"mafia-host-be/internal/clock"
	"mafia-host-be/internal/service/dto"
	"mafia-host-be/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// 房间号分配的最大重试次数
	CODE_ALLOC_ATTEMPTS = 1000

	// 请求/应答通道的缓冲大小
	ROOM_REQ_BUFFER  = 64
	CONN_RESP_BUFFER = 64

	attachTimeout = 5 * time.Second
)

var (
	ErrRoomNotFound  = errors.New("房间不存在")
	ErrPanelOccupied = errors.New("房间已有控制端")
	ErrRoomBusy      = errors.New("房间繁忙，请稍后再试")
)

// RelayService 管理所有房间：一个面板写状态，若干悬浮层只读
// 每个房间由一个独立协程串行处理请求，保证状态更新的顺序
type RelayService struct {
	state *relayState

	snapshots  *store.SnapshotStore
	directory  *DirectoryService
	inactivity time.Duration
}

type relayState struct {
	mu sync.RWMutex

	// 均为从房间号到实体的映射
	rooms         map[string]*relayRoom
	roomReqChList map[string]chan roomRequestAction
}

type relayRoom struct {
	code string

	// 以下字段只在房间协程（或房间创建时）访问
	doc      dto.StateDocument
	panel    *roomConn
	overlays map[string]*roomConn

	eviction *clock.Countdown
}

func NewRelayService(
	snapshots *store.SnapshotStore,
	directory *DirectoryService,
	inactivity time.Duration,
) *RelayService {
	return &RelayService{
		state: &relayState{
			rooms:         make(map[string]*relayRoom),
			roomReqChList: make(map[string]chan roomRequestAction),
		},
		snapshots:  snapshots,
		directory:  directory,
		inactivity: inactivity,
	}
}

// Close 通知所有房间协程退出
func (rs *RelayService) Close() {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	for code, reqCh := range rs.state.roomReqChList {
		select {
		case reqCh <- roomRequestAction{Done: &struct{}{}}:
		default:
			zap.S().Warnf("房间 %s 关闭指令投递失败", code)
		}
	}
}

// RoomSession 是一条连接与房间之间的会话句柄
type RoomSession struct {
	Code    string
	ConnID  string
	IsPanel bool

	reqCh chan<- roomRequestAction
}

// BindPanel 接入控制面板
// code 为空时分配新房间；非空时回收既有房间（在线房间或落盘快照）
// 返回的文档是加入时刻的权威状态副本
func (rs *RelayService) BindPanel(
	req dto.PanelInitRequest,
	respCh chan dto.ResponseWrapper,
) (*RoomSession, dto.StateDocument, error) {
	connID := uuid.New().String()[:8]
	conn := &roomConn{id: connID, respCh: respCh}

	if req.Code == "" {
		room, reqCh, err := rs.createRoom("", conn, nil, nil)
		if err != nil {
			return nil, nil, err
		}

		zap.S().Infof("房间 %s 由面板 %s 创建", room.code, connID)

		return &RoomSession{
			Code:    room.code,
			ConnID:  connID,
			IsPanel: true,
			reqCh:   reqCh,
		}, room.doc.Clone(), nil
	}

	// 回收在线房间
	rs.state.mu.RLock()
	reqCh, live := rs.state.roomReqChList[req.Code]
	rs.state.mu.RUnlock()

	if live {
		ackCh := make(chan attachResult, 1)
		action := roomRequestAction{
			BindPanel: &bindPanelAction{ConnID: connID, RespCh: respCh, AckCh: ackCh},
		}

		state, err := rs.dispatchAttach(req.Code, reqCh, action, ackCh)
		if err != nil {
			return nil, nil, err
		}

		zap.S().Infof("房间 %s 被面板 %s 回收", req.Code, connID)

		return &RoomSession{
			Code:    req.Code,
			ConnID:  connID,
			IsPanel: true,
			reqCh:   reqCh,
		}, state, nil
	}

	// 回收落盘快照：进程重启后房间只剩磁盘上的状态
	doc, ok, err := rs.snapshots.Load(req.Code)
	if err != nil {
		zap.S().Warnf("房间 %s 快照读取失败：%v", req.Code, err)
		return nil, nil, ErrRoomNotFound
	}
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	room, newReqCh, err := rs.createRoom(req.Code, conn, nil, doc)
	if err != nil {
		return nil, nil, err
	}

	zap.S().Infof("房间 %s 从快照恢复并绑定面板 %s", room.code, connID)

	return &RoomSession{
		Code:    room.code,
		ConnID:  connID,
		IsPanel: true,
		reqCh:   newReqCh,
	}, room.doc.Clone(), nil
}

// JoinOverlay 接入一个只读悬浮层
// 返回的文档已经垫入全局头像目录
func (rs *RelayService) JoinOverlay(
	req dto.OverlayJoinRequest,
	respCh chan dto.ResponseWrapper,
) (*RoomSession, dto.StateDocument, error) {
	if req.Code == "" {
		return nil, nil, ErrRoomNotFound
	}

	connID := uuid.New().String()[:8]
	conn := &roomConn{id: connID, respCh: respCh}

	rs.state.mu.RLock()
	reqCh, live := rs.state.roomReqChList[req.Code]
	rs.state.mu.RUnlock()

	if live {
		ackCh := make(chan attachResult, 1)
		action := roomRequestAction{
			JoinOverlay: &joinOverlayAction{ConnID: connID, RespCh: respCh, AckCh: ackCh},
		}

		state, err := rs.dispatchAttach(req.Code, reqCh, action, ackCh)
		if err != nil {
			return nil, nil, err
		}

		zap.S().Infof("房间 %s 接入悬浮层 %s", req.Code, connID)

		return &RoomSession{
			Code:   req.Code,
			ConnID: connID,
			reqCh:  reqCh,
		}, state, nil
	}

	doc, ok, err := rs.snapshots.Load(req.Code)
	if err != nil {
		zap.S().Warnf("房间 %s 快照读取失败：%v", req.Code, err)
		return nil, nil, ErrRoomNotFound
	}
	if !ok {
		return nil, nil, ErrRoomNotFound
	}

	room, newReqCh, err := rs.createRoom(req.Code, nil, conn, doc)
	if err != nil {
		return nil, nil, err
	}

	zap.S().Infof("房间 %s 从快照恢复并接入悬浮层 %s", room.code, connID)

	return &RoomSession{
		Code:   room.code,
		ConnID: connID,
		reqCh:  newReqCh,
	}, dto.WithAvatarBase(room.doc, rs.directory.Snapshot()), nil
}

// RoomExists 判断房间是否在线或有落盘快照
func (rs *RelayService) RoomExists(code string) bool {
	rs.state.mu.RLock()
	_, live := rs.state.rooms[code]
	rs.state.mu.RUnlock()

	return live || rs.snapshots.Exists(code)
}

// Update 把一次状态更新投递给房间协程
// 通道已满视为房间繁忙
func (s *RoomSession) Update(mode string, fields dto.StateDocument, raw []byte) error {
	action := roomRequestAction{
		StateUpdate: &stateUpdateAction{
			ConnID: s.ConnID,
			Mode:   mode,
			Fields: fields,
			Raw:    raw,
		},
	}

	select {
	case s.reqCh <- action:
		return nil
	default:
		return ErrRoomBusy
	}
}

// ChangeAvatar 投递一次头像变更
func (s *RoomSession) ChangeAvatar(login, avatar string) error {
	action := roomRequestAction{
		AvatarChange: &avatarChangeAction{
			ConnID: s.ConnID,
			Login:  login,
			Avatar: avatar,
		},
	}

	select {
	case s.reqCh <- action:
		return nil
	default:
		return ErrRoomBusy
	}
}

// Detach 把连接从房间摘除，连接断开时由连接层调用
func (s *RoomSession) Detach() {
	action := roomRequestAction{
		Detach: &detachAction{ConnID: s.ConnID},
	}

	select {
	case s.reqCh <- action:
	default:
		zap.S().Warnf("房间 %s 摘除请求投递失败：%s", s.Code, s.ConnID)
	}
}

// dispatchAttach 把接入请求投递给房间协程并等待确认
func (rs *RelayService) dispatchAttach(
	code string,
	reqCh chan roomRequestAction,
	action roomRequestAction,
	ackCh chan attachResult,
) (dto.StateDocument, error) {
	reqTimer := time.NewTimer(attachTimeout)

	select {
	case reqCh <- action:
		if !reqTimer.Stop() {
			select {
			case <-reqTimer.C:
			default:
			}
		}

	case <-reqTimer.C:
		zap.S().Warnf("房间 %s 无法及时处理接入请求", code)
		return nil, ErrRoomBusy
	}

	resTimer := time.NewTimer(attachTimeout)

	select {
	case res := <-ackCh:
		if !resTimer.Stop() {
			select {
			case <-resTimer.C:
			default:
			}
		}

		return res.State, res.Err

	case <-resTimer.C:
		zap.S().Warnf("房间 %s 接入确认超时", code)
		return nil, ErrRoomBusy
	}
}

// createRoom 新建房间，code 为空时随机分配
// 首个接入者通过 panel 或 overlay 传入，在房间协程启动前挂好
func (rs *RelayService) createRoom(
	code string,
	panel *roomConn,
	overlay *roomConn,
	doc dto.StateDocument,
) (*relayRoom, chan roomRequestAction, error) {
	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	if code == "" {
		allocated, err := rs.allocateCodeLocked()
		if err != nil {
			return nil, nil, err
		}
		code = allocated
	} else if _, exists := rs.state.rooms[code]; exists {
		// 并发回收同一房间号时只有第一个成功
		return nil, nil, ErrPanelOccupied
	}

	if doc == nil {
		// 新房间的初始文档垫入全局头像目录
		doc = dto.WithAvatarBase(dto.NewStateDocument(), rs.directory.Snapshot())
	} else {
		// 快照恢复的房间把头像回填进目录
		rs.directory.PutAll(doc.Avatars())
	}

	room := &relayRoom{
		code:     code,
		doc:      doc,
		panel:    panel,
		overlays: make(map[string]*roomConn),
	}
	if overlay != nil {
		room.overlays[overlay.id] = overlay
	}

	reqCh := make(chan roomRequestAction, ROOM_REQ_BUFFER)

	room.eviction = clock.NewCountdown(rs.inactivity, func() {
		select {
		case reqCh <- roomRequestAction{EvictCheck: &struct{}{}}:
		default:
		}
	})

	rs.state.rooms[code] = room
	rs.state.roomReqChList[code] = reqCh

	go rs.roomLoop(room, reqCh)

	room.eviction.Start()

	return room, reqCh, nil
}

func (rs *RelayService) allocateCodeLocked() (string, error) {
	for i := 0; i < CODE_ALLOC_ATTEMPTS; i++ {
		code := fmt.Sprintf("%04d", rand.Intn(10000))

		if _, live := rs.state.rooms[code]; live {
			continue
		}
		if rs.snapshots.Exists(code) {
			continue
		}

		return code, nil
	}

	return "", errors.New("房间号已耗尽")
}

// roomLoop 是房间的串行处理协程
// 所有对 doc、panel、overlays 的读写都发生在这里
func (rs *RelayService) roomLoop(room *relayRoom, reqCh <-chan roomRequestAction) {
	defer zap.S().Infof("房间 %s 协程退出", room.code)

	for req := range reqCh {
		switch {
		case req.Done != nil:
			zap.S().Infof("房间 %s 收到关闭指令", room.code)
			room.eviction.Stop()
			return

		case req.EvictCheck != nil:
			if rs.evictIfIdle(room) {
				return
			}

		case req.BindPanel != nil:
			rs.handleBindPanel(room, req.BindPanel)
			room.eviction.Reset()

		case req.JoinOverlay != nil:
			rs.handleJoinOverlay(room, req.JoinOverlay)
			room.eviction.Reset()

		case req.StateUpdate != nil:
			rs.handleStateUpdate(room, req.StateUpdate)
			room.eviction.Reset()

		case req.AvatarChange != nil:
			rs.handleAvatarChange(room, req.AvatarChange)
			room.eviction.Reset()

		case req.Detach != nil:
			rs.handleDetach(room, req.Detach)
		}
	}
}

func (rs *RelayService) handleBindPanel(room *relayRoom, act *bindPanelAction) {
	if room.panel != nil {
		act.AckCh <- attachResult{Err: ErrPanelOccupied}
		return
	}

	room.panel = &roomConn{id: act.ConnID, respCh: act.RespCh}
	act.AckCh <- attachResult{State: room.doc.Clone()}
}

func (rs *RelayService) handleJoinOverlay(room *relayRoom, act *joinOverlayAction) {
	room.overlays[act.ConnID] = &roomConn{id: act.ConnID, respCh: act.RespCh}

	act.AckCh <- attachResult{
		State: dto.WithAvatarBase(room.doc, rs.directory.Snapshot()),
	}
}

func (rs *RelayService) handleStateUpdate(room *relayRoom, act *stateUpdateAction) {
	// 只有当前面板能写状态，其他来源静默丢弃
	if room.panel == nil || room.panel.id != act.ConnID {
		zap.S().Debugf("房间 %s 丢弃非面板连接 %s 的状态更新", room.code, act.ConnID)
		return
	}

	room.doc = dto.Merge(room.doc, act.Fields, act.Mode)

	respType := dto.RESP_STATE_UPDATE
	if act.Mode == dto.MERGE_FULL {
		respType = dto.RESP_STATE_FULL
	}

	// 先广播后落盘：悬浮层的延迟优先于持久化
	rs.broadcastToOverlays(room, dto.WrapResponse(respType, act.Raw))

	rs.directory.PutAll(act.Fields.Avatars())
	rs.persist(room)
}

func (rs *RelayService) handleAvatarChange(room *relayRoom, act *avatarChangeAction) {
	if room.panel == nil || room.panel.id != act.ConnID {
		zap.S().Debugf("房间 %s 丢弃非面板连接 %s 的头像变更", room.code, act.ConnID)
		return
	}
	if act.Login == "" {
		return
	}

	patch := dto.AvatarPatch(act.Login, act.Avatar)

	room.doc = dto.Merge(room.doc, patch, dto.MERGE_PARTIAL)

	raw, err := dto.EncodeDocument(patch)
	if err != nil {
		zap.S().Warnf("房间 %s 头像变更编码失败：%v", room.code, err)
	} else {
		rs.broadcastToOverlays(room, dto.WrapResponse(dto.RESP_STATE_UPDATE, json.RawMessage(raw)))
	}

	rs.directory.Put(act.Login, act.Avatar)
	rs.persist(room)
}

func (rs *RelayService) handleDetach(room *relayRoom, act *detachAction) {
	if room.panel != nil && room.panel.id == act.ConnID {
		room.panel = nil

		rs.broadcastToOverlays(
			room,
			dto.WrapResponse(dto.RESP_PANEL_LEFT, dto.PanelLeftResponse{Code: room.code}),
		)

		zap.S().Infof("房间 %s 面板离开", room.code)
		room.eviction.Reset()
		return
	}

	if _, ok := room.overlays[act.ConnID]; ok {
		delete(room.overlays, act.ConnID)

		zap.S().Infof("房间 %s 悬浮层 %s 离开", room.code, act.ConnID)

		// 悬浮层离开不广播，只有房间彻底没人时才起淘汰倒计时
		if room.panel == nil && len(room.overlays) == 0 {
			room.eviction.Reset()
		}
	}
}

// evictIfIdle 在倒计时到点时检查房间是否还有面板
// 面板离开超过闲置窗口就彻底淘汰，悬浮层是只读的，留不住房间
func (rs *RelayService) evictIfIdle(room *relayRoom) bool {
	if room.panel != nil {
		room.eviction.Reset()
		return false
	}

	rs.state.mu.Lock()
	delete(rs.state.rooms, room.code)
	delete(rs.state.roomReqChList, room.code)
	rs.state.mu.Unlock()

	room.eviction.Stop()

	// 注册表已注销，不会再有人向这些通道投递响应
	for id, overlay := range room.overlays {
		close(overlay.respCh)
		zap.S().Infof("房间 %s 悬浮层 %s 随房间淘汰断开", room.code, id)
	}
	room.overlays = make(map[string]*roomConn)

	if err := rs.snapshots.Delete(room.code); err != nil {
		zap.S().Warnf("房间 %s 快照删除失败：%v", room.code, err)
	}

	zap.S().Infof("房间 %s 因闲置被淘汰", room.code)

	return true
}

func (rs *RelayService) broadcastToOverlays(room *relayRoom, resp dto.ResponseWrapper) {
	for id, overlay := range room.overlays {
		if !overlay.push(resp) {
			zap.S().Warnf("房间 %s 悬浮层 %s 响应通道已满，消息丢弃", room.code, id)
		}
	}
}

func (rs *RelayService) persist(room *relayRoom) {
	if err := rs.snapshots.Save(room.code, room.doc); err != nil {
		zap.S().Warnf("房间 %s 快照写入失败：%v", room.code, err)
	}
}
