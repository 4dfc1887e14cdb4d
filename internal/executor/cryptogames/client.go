// Package cryptogames 对接 crypto.games 骰子 API 的下注执行器。
// resty 客户端，错误全部可区分：服务端错误负载被包装上抛，绝不 panic。
package cryptogames

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/godice/internal/domain"
	"github.com/betbot/godice/internal/ports"
)

var log = logrus.WithField("component", "cryptogames")

// DefaultBaseURL crypto.games v1 API。
const DefaultBaseURL = "https://api.crypto.games/v1"

// Client 单币种、单 API key 的执行器。
// 同时实现 ports.BetExecutor / BalanceSource / SettingsSource。
type Client struct {
	http *resty.Client
	coin string
	key  string
}

// New 创建执行器。baseURL 为空时用官方地址。
func New(baseURL, coin, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{http: http, coin: coin, key: apiKey}
}

// 服务端负载。数值字段一律 float64 + SafeParse，脏数据退回默认值。
type settingsResponse struct {
	MinBet *float64 `json:"MinBet"`
	Edge   *float64 `json:"Edge"`
}

type balanceResponse struct {
	Balance *float64 `json:"Balance"`
}

type placeBetRequest struct {
	Bet        float64 `json:"Bet"`
	Payout     float64 `json:"Payout"`
	UnderOver  bool    `json:"UnderOver"`
	ClientSeed string  `json:"ClientSeed"`
}

type placeBetResponse struct {
	BetID   int64    `json:"BetId"`
	Profit  *float64 `json:"Profit"`
	Balance *float64 `json:"Balance"`
	Roll    *float64 `json:"Roll"`
}

type apiError struct {
	Message string `json:"error"`
}

// Settings 拉取市场参数。Edge 服务端按百分比下发（1 = 1%）。
func (c *Client) Settings(ctx context.Context) (ports.MarketSettings, error) {
	var out settingsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/settings/" + c.coin)
	if err := c.check(resp, err); err != nil {
		return ports.MarketSettings{}, errors.Wrap(err, "fetch settings")
	}
	if out.MinBet == nil {
		return ports.MarketSettings{}, errors.New("settings payload missing MinBet")
	}

	s := ports.MarketSettings{MinBet: domain.SafeParseFloat(*out.MinBet, decimal.Zero)}
	if out.Edge != nil {
		s.EdgeFraction = domain.SafeParseFloat(*out.Edge, decimal.Zero).
			Div(decimal.NewFromInt(100))
	}
	log.Debugf("🔎 settings: min_bet=%s edge=%s", s.MinBet, s.EdgeFraction)
	return s, nil
}

// CurrentBalance 刷新权威余额。
func (c *Client) CurrentBalance(ctx context.Context) (domain.Money, error) {
	var out balanceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/balance/" + c.coin + "/" + c.key)
	if err := c.check(resp, err); err != nil {
		return decimal.Zero, errors.Wrap(err, "fetch balance")
	}
	if out.Balance == nil {
		return decimal.Zero, errors.New("balance payload missing Balance")
	}
	return domain.SafeParseFloat(*out.Balance, decimal.Zero), nil
}

// Place 提交一注并阻塞到结算。win 判定与服务端一致：Profit > 0。
func (c *Client) Place(ctx context.Context, stake domain.Money, multiplier domain.Multiplier, clientSeed string) (*domain.RoundOutcome, error) {
	bet, _ := stake.Float64()
	payout, _ := multiplier.Float64()

	var out placeBetResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(placeBetRequest{Bet: bet, Payout: payout, UnderOver: true, ClientSeed: clientSeed}).
		SetResult(&out).
		Post("/placebet/" + c.coin + "/" + c.key)
	if err := c.check(resp, err); err != nil {
		return nil, errors.Wrap(err, "place bet")
	}
	if out.Profit == nil || out.Balance == nil {
		return nil, errors.New("placebet payload missing Profit/Balance")
	}

	profit := domain.SafeParseFloat(*out.Profit, decimal.Zero)
	o := &domain.RoundOutcome{
		Stake:      stake,
		Multiplier: multiplier,
		Won:        profit.GreaterThan(decimal.Zero),
		Profit:     profit,
		NewBank:    domain.SafeParseFloat(*out.Balance, decimal.Zero),
	}
	if out.Roll != nil {
		o.Roll = domain.SafeParseFloat(*out.Roll, decimal.Zero)
		o.HasRoll = true
	}
	return o, nil
}

// check 把传输错误与非 2xx / API error 负载统一成可区分的 error。
func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		var apiErr apiError
		// 服务端有时在 200 里塞 {"error": ...}
		if e := json.Unmarshal(resp.Body(), &apiErr); e == nil && apiErr.Message != "" {
			return errors.Errorf("api error: %s", apiErr.Message)
		}
		return nil
	}
	return errors.Errorf("http %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
}
