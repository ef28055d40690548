package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/assembler"
	"github.com/vinkalabs/membot/internal/store/redisstore"
)

const (
	startReply = "Hello! I am your assistant. Send me a message and I will remember context about you."
	helpReply  = "Just write me a message. Use /reset to clear what I remember about you."
	resetReply = "Done, I cleared our conversation memory."

	pollTimeout = 30 * time.Second
	dedupTTL    = 24 * time.Hour
)

// Gateway runs the long-poll loop against the Telegram Bot API, deduplicates
// deliveries via redis and hands each message to the assembler on its own
// goroutine.
type Gateway struct {
	client *Client
	asm    *assembler.Assembler
	dedup  *redisstore.Store
	logger *zap.Logger

	offset int64
}

func NewGateway(client *Client, asm *assembler.Assembler, dedup *redisstore.Store, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, asm: asm, dedup: dedup, logger: logger}
}

// Run polls until the context is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("telegram gateway started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := g.client.GetUpdates(ctx, g.offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Warn("getUpdates failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= g.offset {
				g.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}

			if g.dedup != nil {
				first, err := g.dedup.MarkUpdateSeen(ctx, "telegram", u.UpdateID, dedupTTL)
				if err != nil {
					g.logger.Warn("dedup check failed", zap.Int64("update_id", u.UpdateID), zap.Error(err))
				} else if !first {
					continue
				}
			}

			go g.handle(ctx, u)
		}
	}
}

func (g *Gateway) handle(ctx context.Context, u Update) {
	chatID := u.Message.Chat.ID
	userID := strconv.FormatInt(u.Message.From.ID, 10)
	text := strings.TrimSpace(u.Message.Text)

	var reply string
	switch {
	case text == "/start":
		reply = startReply
	case text == "/help":
		reply = helpReply
	case text == "/reset":
		if err := g.asm.Reset(ctx, userID); err != nil {
			g.logger.Error("reset failed", zap.String("user_id", userID), zap.Error(err))
			reply = assembler.ApologyReply
		} else {
			reply = resetReply
		}
	default:
		var err error
		reply, err = g.asm.Handle(ctx, userID, text)
		if err != nil {
			g.logger.Error("handle failed", zap.String("user_id", userID), zap.Error(err))
			reply = assembler.ApologyReply
		}
	}

	// Delivery failure is logged, not retried.
	if err := g.client.SendMessage(ctx, chatID, reply); err != nil {
		g.logger.Error("sendMessage failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
