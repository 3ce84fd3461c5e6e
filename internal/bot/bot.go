// Package bot — чат-интерфейс: интерпретатор команд (一覧, 消費, ヘルプ)
// и приём свободных заявок. Обе точки входа — отдельные вебхуки LINE.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/snack-bot/internal/bot/filters"
	"serotonyl.ru/snack-bot/internal/bot/middleware"
	"serotonyl.ru/snack-bot/internal/features/accounts"
	"serotonyl.ru/snack-bot/internal/features/ledger"
	"serotonyl.ru/snack-bot/internal/models"
)

// ItemLister отдаёт товары в наличии.
type ItemLister interface {
	ListInStock(ctx context.Context) ([]*models.Item, error)
}

// NameConsumer списывает товар по имени.
type NameConsumer interface {
	ConsumeByName(ctx context.Context, accountID, name string, quantity int) (*ledger.Receipt, error)
}

// AccountEnsurer лениво создаёт аккаунт отправителя.
type AccountEnsurer interface {
	EnsureAccount(ctx context.Context, id string, src accounts.ProfileSource) (*models.Account, error)
}

// Bot — интерпретатор команд.
type Bot struct {
	messenger Messenger
	items     ItemLister
	ledger    NameConsumer
	accounts  AccountEnsurer
	parser    *CommandParser
}

// New создаёт интерпретатор команд.
func New(messenger Messenger, items ItemLister, consumer NameConsumer, accs AccountEnsurer) *Bot {
	return &Bot{
		messenger: messenger,
		items:     items,
		ledger:    consumer,
		accounts:  accs,
		parser:    NewCommandParser(),
	}
}

// HandleEvent обрабатывает одно текстовое сообщение.
func (b *Bot) HandleEvent(ctx context.Context, ev *filters.TextEvent) {
	defer middleware.RecoverFromPanic("CommandBot")
	middleware.LogEvent("commands", ev)

	// Аккаунт нужен до любой команды; профиль не обязателен
	if _, err := b.accounts.EnsureAccount(ctx, ev.UserID, b.messenger); err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Warn("EnsureAccount failed")
	}

	cmd, args := b.parser.ParseCommand(ev.Text)
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("parsed command")

	var reply string
	switch cmd {
	case CmdList:
		reply = b.handleList(ctx)
	case CmdConsume:
		reply = b.handleConsume(ctx, ev.UserID, args)
	case CmdHelp:
		reply = msgHelp
	default:
		reply = msgUnknown
	}
	b.reply(ctx, ev, reply)
}

func (b *Bot) handleList(ctx context.Context) string {
	items, err := b.items.ListInStock(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения списка товаров")
		return msgError
	}
	return stockListText(items)
}

func (b *Bot) handleConsume(ctx context.Context, userID string, args []string) string {
	name, quantity, err := ParseConsumeArgs(args)
	switch {
	case errors.Is(err, errUsage):
		return msgConsumeUsage
	case err != nil:
		// Некорректное количество: до движка списаний не доходим
		return msgBadQuantity
	}

	receipt, err := b.ledger.ConsumeByName(ctx, userID, name, quantity)
	if err != nil {
		var shortage *ledger.StockShortageError
		switch {
		case errors.Is(err, ledger.ErrItemNotFound):
			return notFoundText(name)
		case errors.As(err, &shortage):
			return shortageText(shortage.Available)
		case errors.Is(err, ledger.ErrInvalidQuantity):
			return msgBadQuantity
		}
		log.WithError(err).WithFields(log.Fields{
			"user_id": userID,
			"item":    name,
		}).Error("Ошибка списания по имени")
		return msgError
	}
	return consumedText(receipt.ItemName, receipt.Quantity, receipt.NewStock)
}

func (b *Bot) reply(ctx context.Context, ev *filters.TextEvent, text string) {
	if err := b.messenger.Reply(ctx, ev.ReplyToken, text); err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Error("Ошибка отправки ответа")
	}
}

// Command — распознанная команда.
type Command string

const (
	CmdUnknown Command = ""
	CmdList    Command = "list"
	CmdConsume Command = "consume"
	CmdHelp    Command = "help"
)

// CommandParser разбирает японские команды бота.
type CommandParser struct {
	exact  map[string]Command // команды без аргументов
	prefix map[string]Command // первое слово команды с аргументами
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		exact: map[string]Command{
			"一覧":  CmdList,
			"リスト": CmdList,
			"ヘルプ": CmdHelp,
			"使い方": CmdHelp,
		},
		prefix: map[string]Command{
			"消費": CmdConsume,
		},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Регистр учитывается, команды без аргументов должны совпадать целиком.
func (p *CommandParser) ParseCommand(text string) (Command, []string) {
	text = strings.TrimSpace(text)
	if cmd, ok := p.exact[text]; ok {
		return cmd, nil
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return CmdUnknown, nil
	}
	if cmd, ok := p.prefix[parts[0]]; ok {
		return cmd, parts[1:]
	}
	return CmdUnknown, nil
}

var (
	errUsage       = errors.New("usage")
	errBadQuantity = errors.New("bad quantity")
)

// ParseConsumeArgs разбирает аргументы 消費: имя и необязательное количество (по умолчанию 1).
// Количество должно быть положительным целым.
func ParseConsumeArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, errUsage
	}
	name := args[0]
	if len(args) < 2 {
		return name, 1, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return name, 0, errBadQuantity
	}
	return name, n, nil
}
