// Package notification provides implementations for various notification services
package notification

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

// configRegexp matches "/config SYMBOL" commands
var configRegexp = regexp.MustCompile(`/config\s+(?P<symbol>[\w/:]+)`)

// Controller is the surface the telegram service drives. The trading
// engine implements it.
type Controller interface {
	Status() string
	Start()
	Stop()
	PositionReport() string
	ConfigReport(symbol string) string
}

// Settings holds the telegram credentials and the authorized user list
type Settings struct {
	Token string
	Users []int
}

// telegram delivers trading decisions to authorized users and accepts a
// small set of control commands back
type telegram struct {
	settings    Settings
	controller  Controller
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
}

// Notifier is a notifier that must be started before it delivers messages
type Notifier interface {
	Notify(message string)
	OnError(err error)
	Start()
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(controller Controller, settings Settings) (Notifier, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := createAuthMiddleware(poller, settings)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &telegram{
		controller:  controller,
		client:      client,
		settings:    settings,
		defaultMenu: menu,
	}

	registerHandlers(client, bot)

	return bot, nil
}

// createAuthMiddleware creates a middleware to validate authorized users
func createAuthMiddleware(poller *tb.LongPoller, settings Settings) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn    = menu.Text("/status")
		positionsBtn = menu.Text("/positions")
		startBtn     = menu.Text("/start")
		stopBtn      = menu.Text("/stop")
	)

	menu.Reply(
		menu.Row(statusBtn, positionsBtn),
		menu.Row(startBtn, stopBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/stop", Description: "Pause the decision cycle"},
		{Text: "/start", Description: "Resume the decision cycle"},
		{Text: "/status", Description: "Check agent status"},
		{Text: "/positions", Description: "Open positions and exit levels"},
		{Text: "/config", Description: "Effective strategy config for a symbol"},
	})
}

// registerHandlers registers all command handlers
func registerHandlers(client *tb.Bot, bot *telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/start", bot.StartHandle)
	client.Handle("/stop", bot.StopHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/positions", bot.PositionsHandle)
	client.Handle("/config", bot.ConfigHandle)
}

// Start begins the Telegram bot and notifies all authorized users
func (t *telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions("Agent initialized.", t.defaultMenu)
}

// Notify sends a message to all authorized users
func (t *telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text)
		if err != nil {
			log.WithError(err).Error("failed to send notification")
		}
	}
}

// sendMessageWithOptions sends a message to all authorized users with options
func (t *telegram) sendMessageWithOptions(text string, options ...interface{}) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...)
		if err != nil {
			log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific user
func (t *telegram) sendMessage(to *tb.User, text string, options ...interface{}) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		log.WithError(err).Error("failed to send message")
	}
}

// HelpHandle displays available commands
func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// StatusHandle displays the current agent status
func (t *telegram) StatusHandle(m *tb.Message) {
	t.sendMessage(m.Sender, fmt.Sprintf("Status: `%s`", t.controller.Status()))
}

// PositionsHandle shows open positions with their exit levels
func (t *telegram) PositionsHandle(m *tb.Message) {
	report := t.controller.PositionReport()
	if report == "" {
		t.sendMessage(m.Sender, "No open positions.")
		return
	}
	t.sendMessage(m.Sender, report)
}

// ConfigHandle shows the effective strategy config for a symbol
func (t *telegram) ConfigHandle(m *tb.Message) {
	match := configRegexp.FindStringSubmatch(m.Text)
	if len(match) == 0 {
		t.sendMessage(m.Sender, "Invalid command.\nExample of usage:\n`/config BTC/USDT`")
		return
	}

	symbol := strings.ToUpper(match[1])
	t.sendMessage(m.Sender, t.controller.ConfigReport(symbol))
}

// StartHandle resumes the decision cycle
func (t *telegram) StartHandle(m *tb.Message) {
	t.controller.Start()
	t.sendMessage(m.Sender, "Agent started.", t.defaultMenu)
}

// StopHandle pauses the decision cycle
func (t *telegram) StopHandle(m *tb.Message) {
	t.controller.Stop()
	t.sendMessage(m.Sender, "Agent stopped.", t.defaultMenu)
}

// OnError notifies users about errors
func (t *telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("ERROR\n")
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}
