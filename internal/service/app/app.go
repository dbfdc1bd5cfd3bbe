package app

import (
	"context"
	"fmt"
	"time"

	"topicmsg/internal/content"
	"topicmsg/internal/conversation"
	"topicmsg/internal/keystore"
	"topicmsg/internal/model"
	"topicmsg/internal/repository/account"
	"topicmsg/internal/service/redis"
	"topicmsg/internal/transport/httptransport"
	"topicmsg/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		redisService *redis.RedisService
		accountRepo  *account.AccountRepo
		node         *httptransport.Client

		address string
		client  *conversation.Client
		conv    *conversation.ConversationV1
	}
)

func NewApp(accountRepo *account.AccountRepo, redis *redis.RedisService, node *httptransport.Client) *App {
	return &App{
		app:          tview.NewApplication(),
		accountRepo:  accountRepo,
		redisService: redis,
		node:         node,
	}
}

func (c *App) Run(ctx context.Context, name string) {
	acc, err := c.getAccountAndCreateIfNotExist(ctx, name)
	if err != nil {
		log.Fatal("get account failed", zap.Error(err))
	}
	bundle, err := acc.Bundle()
	if err != nil {
		log.Fatal("restore key bundle failed", zap.Error(err))
	}
	c.address = bundle.Address

	if err := c.node.PutContact(ctx, c.address, bundle.PublicKeyBundle()); err != nil {
		log.Fatal("publish contact failed", zap.Error(err))
	}

	known, err := c.GetKnownPeers(ctx, c.address)
	if err != nil {
		log.Fatal("load known peers failed", zap.Error(err))
	}

	ks := keystore.New(bundle, keystore.NewRedisTopicStore(c.redisService, c.address))
	c.client, err = conversation.New(ctx, ks, c.node, c.node,
		conversation.WithKnownPeers(known...),
		conversation.WithCodecs(content.ReactionCodec{}),
	)
	if err != nil {
		log.Fatal("init client failed", zap.Error(err))
	}

	fmt.Printf("Your address: %s\n", c.address)
	var to string
	fmt.Print("Enter recipient's address: ")
	if _, err := fmt.Scan(&to); err != nil { // reads until whitespace
		fmt.Println("error:", err)
		return
	}

	c.conv, err = c.client.NewConversationV1(to, time.Now())
	if err != nil {
		log.Fatal("open conversation failed", zap.Error(err))
	}

	history, err := c.conv.Messages(ctx, model.ListOptions{})
	if err != nil {
		log.Error("load history failed", zap.Error(err))
	}

	go c.listen(ctx)
	c.renderUI(history)
}

func (c *App) Stop() {
	c.app.Stop()
}

// blocking function
func (c *App) renderUI(history []model.DecodedMessage) {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.conv.PeerAddress()))
	for _, m := range history {
		fmt.Fprintln(c.chatbox, c.format(m))
	}

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if text == "" {
			return
		}

		go func(msg string) {
			if err := c.SendMessage(context.Background(), msg); err != nil {
				c.app.Suspend(func() {
					log.Error("Send message failed", zap.Error(err))
				})
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (c *App) listen(ctx context.Context) {
	for m, err := range c.conv.StreamMessages(ctx) {
		if err != nil {
			log.Warn("receive message failed", zap.Error(err))
			continue
		}
		// own messages are shown when sent
		if m.SenderAddress == c.address {
			continue
		}

		line := c.format(m)
		c.app.QueueUpdateDraw(func() {
			fmt.Fprintln(c.chatbox, line)
			c.chatbox.ScrollToEnd()
		})
	}
}

func (c *App) SendMessage(ctx context.Context, msg string) error {
	sent, err := c.conv.Send(ctx, msg)
	if err != nil {
		return err
	}
	if err := c.SaveKnownPeer(ctx, c.address, c.conv.PeerAddress()); err != nil {
		log.Warn("save known peer failed", zap.Error(err))
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, c.format(sent))
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

func (c *App) format(m model.DecodedMessage) string {
	who := "[green]" + m.SenderAddress + ":[-]"
	if m.SenderAddress == c.address {
		who = "[yellow]You:[-]"
	}
	return who + " " + Render(m)
}

// Render turns decoded content into one line of text.
func Render(m model.DecodedMessage) string {
	if m.Error != nil {
		if s, ok := m.Content.(string); ok {
			return fmt.Sprintf("%s [gray](%s)[-]", s, m.Error)
		}
		return fmt.Sprintf("[gray](%s)[-]", m.Error)
	}
	switch v := m.Content.(type) {
	case string:
		return v
	case content.Reaction:
		return fmt.Sprintf("[gray]%s %s to %s[-]", v.Action, v.Content, v.Reference)
	default:
		return fmt.Sprintf("[gray](%s)[-]", m.ContentType)
	}
}
