// internal/telegram/adapter.go
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/postclaw/internal/flow"
	"github.com/user/postclaw/internal/gateway"
	"github.com/user/postclaw/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot   *tgbotapi.BotAPI
	gw    *gateway.Gateway
	store types.SessionStore
	retry *gateway.RetryPolicy
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, store types.SessionStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:   bot,
		gw:    gw,
		store: store,
		retry: gateway.DefaultRetryPolicy(),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	event := a.buildEvent(msg)
	if event == nil {
		return
	}
	a.dispatch(ctx, msg.Chat.ID, event)
}

// buildEvent converts a non-command message into an inbound event, or nil
// when the message carries nothing the workflow can use.
func (a *Adapter) buildEvent(msg *tgbotapi.Message) *types.InboundEvent {
	event := &types.InboundEvent{
		Source:    "telegram",
		ActorID:   types.ActorFromInt64(msg.From.ID),
		ChannelID: types.ChannelFromInt64(msg.Chat.ID),
		RequestID: types.NewRequestID(),
	}

	if msg.Location != nil {
		event.Kind = types.KindLocation
		event.Location = &types.Location{
			Lat:    msg.Location.Latitude,
			Lng:    msg.Location.Longitude,
			Source: "telegram",
		}
		return event
	}

	if len(msg.Photo) > 0 {
		// Telegram sends several sizes; the last is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		data, err := a.downloadFile(photo.FileID)
		if err != nil {
			slog.Error("photo download failed", "actor_id", string(event.ActorID), "error", err)
			a.sendResponse(msg.Chat.ID, "I couldn't fetch that photo from Telegram. Please send it again.")
			return nil
		}
		event.Kind = types.KindArtifact
		event.ArtifactData = data
		return event
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if strings.EqualFold(text, "publish") {
		event.Kind = types.KindPublish
	} else {
		event.Kind = types.KindText
		event.Text = text
	}
	return event
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	event := &types.InboundEvent{
		Source:    "telegram",
		ActorID:   types.ActorFromInt64(msg.From.ID),
		ChannelID: types.ChannelFromInt64(chatID),
		RequestID: types.NewRequestID(),
	}

	switch msg.Command() {
	case "start", "new":
		event.Kind = types.KindBegin
		a.dispatch(ctx, chatID, event)

	case "cancel":
		event.Kind = types.KindCancel
		a.dispatch(ctx, chatID, event)

	case "publish":
		event.Kind = types.KindPublish
		a.dispatch(ctx, chatID, event)

	case "status":
		a.sendResponse(chatID, a.statusText(ctx, event.ActorID))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /status, /publish, /cancel")
	}
}

// statusText summarizes the actor's draft without going through the queue.
func (a *Adapter) statusText(ctx context.Context, actor types.ActorID) string {
	sess, _, err := a.store.Get(ctx, actor)
	if err != nil {
		return "No draft in progress. Send /start to begin."
	}
	missing := flow.MissingFields(sess)
	if len(missing) == 0 {
		return fmt.Sprintf("Draft for %s is ready. Say 'publish' to finish it.", sess.Date)
	}
	return fmt.Sprintf("Draft in progress (%d photos so far). Still missing: %s.",
		len(sess.Artifacts), strings.Join(missing, ", "))
}

func (a *Adapter) dispatch(ctx context.Context, chatID int64, event *types.InboundEvent) {
	err := a.gw.HandleInbound(ctx, event, gateway.WithOnReply(func(response string) {
		a.sendResponse(chatID, response)
	}))
	if err != nil {
		slog.Error("handle inbound error", "actor_id", string(event.ActorID), "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

// SendTo delivers a message to a channel id, used by the delivery registry
// for sweeper notifications. The channel key carries a "telegram:" prefix.
func (a *Adapter) SendTo(channelKey, message string) error {
	raw := strings.TrimPrefix(channelKey, "telegram:")
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse channel key %q: %w", channelKey, err)
	}
	a.sendResponse(chatID, message)
	return nil
}

// downloadFile fetches a Telegram file's bytes, retrying transient failures.
func (a *Adapter) downloadFile(fileID string) ([]byte, error) {
	url, err := a.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	var data []byte
	err = a.retry.Execute(func() error {
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("fetch file: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch file: unexpected status %s", resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read file body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := a.bot.Send(msg); err != nil {
			slog.Error("send message error", "error", err)
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
