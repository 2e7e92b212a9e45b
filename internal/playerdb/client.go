package playerdb

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Client 对接外部玩家目录服务
// 该服务只是头像的远端镜像，不可用时本服务必须照常工作
type Client struct {
	baseURL string
	httpCli *http.Client
}

type PlayerRecord struct {
	Login  string `json:"login"`
	Avatar string `json:"avatar"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCli: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// Enabled 报告是否配置了远端目录地址
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// SearchPlayers 按 login 前缀查询玩家
func (c *Client) SearchPlayers(pattern string) ([]PlayerRecord, error) {
	if !c.Enabled() {
		return nil, nil
	}

	query := url.Values{}
	query.Set("login", pattern)

	resp, err := c.httpCli.Get(c.baseURL + "/players?" + query.Encode())
	if err != nil {
		return nil, fmt.Errorf("查询玩家目录失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("玩家目录返回异常状态: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取玩家目录响应失败: %w", err)
	}

	var records []PlayerRecord
	if err := jsonCodec.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("解码玩家目录响应失败: %w", err)
	}

	return records, nil
}

// UpsertPlayer 把头像写回远端目录，失败只记日志
// 调用方不等待结果，目录同步是尽力而为的
func (c *Client) UpsertPlayer(login, avatar string) {
	if !c.Enabled() {
		return
	}

	payload, err := jsonCodec.Marshal(PlayerRecord{Login: login, Avatar: avatar})
	if err != nil {
		zap.L().Error("编码玩家记录失败", zap.Error(err))
		return
	}

	resp, err := c.httpCli.Post(
		c.baseURL+"/players",
		"application/json",
		strings.NewReader(string(payload)),
	)
	if err != nil {
		zap.L().Warn(
			"同步玩家目录失败",
			zap.String("login", login),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		zap.L().Warn(
			"玩家目录拒绝写入",
			zap.String("login", login),
			zap.Int("status", resp.StatusCode),
		)
	}
}
