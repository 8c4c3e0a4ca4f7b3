package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// signalThinking is the one control signal Telegram can express, mapped to
// the native typing indicator.
const signalThinking = "thinking"

// defaultMessageLimit is the platform's hard cap on message length,
// used when the configured limit is missing or non-positive.
const defaultMessageLimit = 4096

// TelegramConfig encapsulates the credentials required to authenticate with
// the Telegram Bot API.
type TelegramConfig struct {
	Token string `json:"token"` // The secret BOT API string provided by @BotFather
}

// TelegramChannel is the Telegram implementation of gateway.Channel. It
// receives text messages over long polling and fragments long replies to
// fit the platform's message size limit.
type TelegramChannel struct {
	config       TelegramConfig
	bot          *tgbotapi.BotAPI
	messageLimit int
	stopCtx      context.Context    // Aborts the long-polling HTTP request on shutdown
	stopCancel   context.CancelFunc
}

func NewTelegramChannel(cfg TelegramConfig, msgLimit int) (api.Channel, error) {
	if msgLimit <= 0 {
		msgLimit = defaultMessageLimit
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Dedicated HTTP client with its dials tied to stopCtx, so an active
	// long-poll request is aborted immediately when Stop() is called.
	// Otherwise a restarted bot hits 409 Conflict against the stale poll.
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	botHttpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
				mergedCtx, mergedCancel := context.WithCancel(dialCtx)
				go func() {
					select {
					case <-ctx.Done():
						mergedCancel()
					case <-mergedCtx.Done():
					}
				}()
				return dialer.DialContext(mergedCtx, network, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, botHttpClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &TelegramChannel{
		config:       cfg,
		bot:          bot,
		messageLimit: msgLimit,
		stopCtx:      ctx,
		stopCancel:   cancel,
	}, nil
}

// ID returns the unique platform identifier "telegram".
func (t *TelegramChannel) ID() string {
	return "telegram"
}

// Start initiates the long-polling update loop in a background goroutine,
// converting incoming text messages into the internal UnifiedMessage format.
// Non-text updates are ignored.
func (t *TelegramChannel) Start(ctx api.ChannelContext) error {
	offset := 0

	go func() {
		for {
			select {
			case <-t.stopCtx.Done():
				return
			default:
			}

			// Manual GetUpdates instead of GetUpdatesChan keeps the offset
			// under our control and lets the stopCtx-bound client abort the
			// request mid-flight.
			reqConfig := tgbotapi.NewUpdate(offset)
			reqConfig.Timeout = 60

			updates, err := t.bot.GetUpdates(reqConfig)
			if err != nil {
				select {
				case <-t.stopCtx.Done():
					return
				default:
					slog.Debug("Failed to get telegram updates", "error", err)
					time.Sleep(3 * time.Second)
					continue
				}
			}

			for _, update := range updates {
				if update.UpdateID >= offset {
					offset = update.UpdateID + 1

					if update.Message == nil || update.Message.Text == "" {
						continue
					}

					session := api.SessionContext{
						ChannelID: "telegram",
						UserID:    strconv.FormatInt(update.Message.From.ID, 10),
						ChatID:    strconv.FormatInt(update.Message.Chat.ID, 10),
						Username:  update.Message.From.UserName,
					}

					ctx.OnMessage(t.ID(), &api.UnifiedMessage{
						Session:   session,
						Content:   update.Message.Text,
						RequestID: utils.NewRequestID(),
					})
				}
			}
		}
	}()

	return nil
}

// SendSignal implements the gateway.SignalingChannel interface.
func (t *TelegramChannel) SendSignal(session api.SessionContext, signal string) error {
	if signal == signalThinking {
		chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
		if err != nil {
			return err
		}
		action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
		_, err = t.bot.Send(action)
		return err
	}
	return nil
}

func (t *TelegramChannel) Stop() error {
	t.stopCancel() // Abort the long-polling loop immediately

	if httpClient, ok := t.bot.Client.(*http.Client); ok && httpClient != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
	}

	return nil
}

func (t *TelegramChannel) Send(session api.SessionContext, message string) error {
	// Telegram Chat ID must be int64
	chatID, err := strconv.ParseInt(session.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id for telegram: %s", session.ChatID)
	}

	// Send long replies in limit-sized chunks
	for i, chunk := range chunkMessage(message, t.messageLimit) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send chunk %d failed: %w", i, err)
		}
	}

	return nil
}

// chunkMessage splits a message into limit-sized rune chunks. A non-positive
// limit falls back to the platform default so the split always terminates.
func chunkMessage(message string, limit int) []string {
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	msgRunes := []rune(message)
	totalLen := len(msgRunes)
	if totalLen <= limit {
		return []string{message}
	}

	chunks := make([]string, 0, totalLen/limit+1)
	for i := 0; i < totalLen; i += limit {
		end := i + limit
		if end > totalLen {
			end = totalLen
		}
		chunks = append(chunks, string(msgRunes[i:end]))
	}
	return chunks
}
