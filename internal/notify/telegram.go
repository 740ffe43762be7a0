package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier 通过 Telegram Bot API 推送运行报告。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 运行报告通道。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// ReportRun 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) ReportRun(ctx context.Context, report RunReport) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderRunReport(report),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Time("fired_at", report.FiredAt).
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Msg("运行报告已发送 (Telegram)")
	return nil
}

func renderRunReport(report RunReport) string {
	builder := strings.Builder{}
	builder.WriteString("[Seller Watch Run]\n")
	builder.WriteString(fmt.Sprintf("Fired: %s UTC\n", report.FiredAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Accounts: %d enumerated\n", report.Enumerated))
	builder.WriteString(fmt.Sprintf("Processed: %d\n", report.Processed))
	builder.WriteString(fmt.Sprintf("Failed: %d\n", report.Failed))
	builder.WriteString(fmt.Sprintf("Duration: %.1fs\n", report.Duration.Seconds()))
	return builder.String()
}

var _ OpsNotifier = (*TelegramNotifier)(nil)
