// Package telegram is the operator command surface: acknowledgment, status
// and configuration upload over a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"p2p-ad-bot/internal/interfaces"
	"p2p-ad-bot/internal/logger"
	"p2p-ad-bot/internal/store"
	"p2p-ad-bot/internal/types"
)

const (
	StartReply = "Bot is running"
	helpText   = "Commands:\n/start - check the bot is alive\n/status - show session and order counters\nSend a YAML document to load a new configuration."

	maxDocumentBytes = 1 << 20
	pollTimeout      = 60
)

// botAPI is the subset of *tgbotapi.BotAPI the commander uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Controller is the part of the scheduler the commander drives.
type Controller interface {
	Swap(sess *interfaces.Session)
	Current() *interfaces.Session
	Stats() types.OrderStats
	Running() bool
}

// SessionFactory turns an accepted configuration into a ready session,
// building the venue gateway from its credentials.
type SessionFactory func(ctx context.Context, cfg *store.Config) (*interfaces.Session, error)

type Commander struct {
	bot        botAPI
	controller Controller
	build      SessionFactory
	allowed    map[int64]bool
	httpClient *http.Client
}

// New connects to the Telegram API with token.
func New(token string, allowedChatIDs []int64, c Controller, build SessionFactory) (*Commander, error) {
	if token == "" {
		return nil, &types.ConfigError{Field: "telegram.token", Reason: "must not be empty"}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return newCommander(bot, allowedChatIDs, c, build), nil
}

func newCommander(bot botAPI, allowedChatIDs []int64, c Controller, build SessionFactory) *Commander {
	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}
	return &Commander{
		bot:        bot,
		controller: c,
		build:      build,
		allowed:    allowed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run dispatches updates until ctx is cancelled or the update channel
// closes.
func (c *Commander) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.bot.GetUpdatesChan(u)
	logger.Info(ctx, "Telegram command surface started", "allowed_chats", len(c.allowed))

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			c.handle(ctx, upd)
		}
	}
}

func (c *Commander) handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if len(c.allowed) > 0 && !c.allowed[chatID] {
		logger.Warn(ctx, "Ignoring message from unauthorized chat", "chat_id", chatID)
		return
	}

	switch {
	case msg.Document != nil:
		c.reply(ctx, chatID, c.loadConfig(ctx, msg.Document))
	case msg.IsCommand():
		logger.Info(ctx, "Operator command", "chat_id", chatID, "command", msg.Command())
		switch msg.Command() {
		case "start":
			c.reply(ctx, chatID, StartReply)
		case "status":
			c.reply(ctx, chatID, c.status())
		default:
			c.reply(ctx, chatID, helpText)
		}
	}
}

// loadConfig downloads, validates and installs an uploaded configuration.
// The reply text describes the outcome either way.
func (c *Commander) loadConfig(ctx context.Context, doc *tgbotapi.Document) string {
	if doc.FileSize > maxDocumentBytes {
		return fmt.Sprintf("Configuration rejected: file is larger than %d bytes", maxDocumentBytes)
	}

	raw, err := c.download(ctx, doc.FileID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to download configuration", err, "file", doc.FileName)
		return "Configuration rejected: " + err.Error()
	}

	cfg, err := store.Parse(raw)
	if err != nil {
		logger.ErrorWithErr(ctx, "Uploaded configuration is invalid", err, "file", doc.FileName)
		return "Configuration rejected: " + err.Error()
	}

	sess, err := c.build(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build session from uploaded configuration", err, "file", doc.FileName)
		return "Configuration rejected: " + err.Error()
	}

	first := c.controller.Current() == nil
	c.controller.Swap(sess)
	logger.Info(ctx, "Configuration loaded", "file", doc.FileName, "ads", len(sess.Specs), "mode", cfg.Mode)

	text := fmt.Sprintf("Configuration loaded: %d ads, mode %s, interval %s", len(sess.Specs), cfg.Mode, sess.Interval)
	if first {
		text += "\nPoll loop starting"
	} else {
		text += "\nApplies from the next tick"
	}
	return text
}

func (c *Commander) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(b) > maxDocumentBytes {
		return nil, errors.New("file is too large")
	}
	return b, nil
}

func (c *Commander) status() string {
	var sb strings.Builder

	sess := c.controller.Current()
	if sess == nil {
		sb.WriteString("Session: none, upload a configuration document\n")
	} else {
		fmt.Fprintf(&sb, "Session: %d ads, interval %s, loaded %s\n",
			len(sess.Specs), sess.Interval, sess.LoadedAt.UTC().Format(time.RFC3339))
	}

	if c.controller.Running() {
		sb.WriteString("Poll loop: running\n")
	} else {
		sb.WriteString("Poll loop: stopped\n")
	}

	stats := c.controller.Stats()
	fmt.Fprintf(&sb, "Orders seen: %d, paid: %d\n", stats.Seen, stats.Paid)
	if stats.LastTick.IsZero() {
		sb.WriteString("Last tick: never")
	} else {
		fmt.Fprintf(&sb, "Last tick: %s", stats.LastTick.UTC().Format(time.RFC3339))
	}
	return sb.String()
}

func (c *Commander) reply(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.ErrorWithErr(ctx, "Failed to send telegram reply", err, "chat_id", chatID)
	}
}
