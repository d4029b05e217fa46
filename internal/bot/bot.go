package bot

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
	apperrors "github.com/yourusername/chgk-bot/internal/pkg/errors"
	"github.com/yourusername/chgk-bot/internal/service/game"
	"github.com/yourusername/chgk-bot/internal/service/pool"
	"github.com/yourusername/chgk-bot/internal/service/report"
)

// API - часть клиента Telegram, которой пользуется бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Game - игровая логика, которой управляет бот
type Game interface {
	Defaults() entity.SelectionFilter
	Start(ctx context.Context, chatID int64, filter entity.SelectionFilter) (*game.StartOutcome, error)
	Reveal(ctx context.Context, chatID int64) (*game.RevealOutcome, error)
	Advance(ctx context.Context, chatID int64) (*game.AdvanceOutcome, error)
	Resume(ctx context.Context, chatID int64) (*game.AdvanceOutcome, error)
	ResumeWaiting(ctx context.Context) ([]game.Resumed, error)
	ScheduleAdvance(chatID int64, fn game.AdvanceFunc)
	SubmitAnswer(ctx context.Context, chatID, senderChatID int64, text string) (*game.AnswerOutcome, error)
	MarkQuestionPublished(ctx context.Context, chatID, questionID int64, messageID int) (bool, error)
	AbortDelivery(ctx context.Context, chatID, questionID int64) error
	Stop(ctx context.Context, chatID int64) (entity.SessionStats, error)
	PoolStats(ctx context.Context) (*entity.PoolStats, error)
	Analytics(ctx context.Context, window time.Duration) (*entity.UsageAnalytics, error)
}

// Replenisher выполняет ручное и ожидаемое пополнение пула
type Replenisher interface {
	RunManual(ctx context.Context, reason string, cursorOverride *int64, maxBatches int) (*entity.ReplenishResult, error)
	Ensure(ctx context.Context) (*entity.ReplenishResult, error)
}

// Options содержит настройки бота
type Options struct {
	Username    string // имя бота без @, для команд вида /next@bot
	AdminUserID int64
	BaseURL     string // база для относительных ссылок на картинки раздатки
}

// Bot обрабатывает обновления Telegram и доставляет вопросы в чаты
type Bot struct {
	api         API
	game        Game
	replenisher Replenisher
	opts        Options

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New создает бота
func New(api API, g Game, replenisher Replenisher, opts Options) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		api:         api,
		game:        g,
		replenisher: replenisher,
		opts:        opts,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Close прекращает обработку и дожидается запущенных обработчиков
func (b *Bot) Close() {
	b.cancel()
	b.wg.Wait()
}

// Dispatch обрабатывает обновление в отдельной горутине
func (b *Bot) Dispatch(update tgbotapi.Update) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Bot] Паника при обработке обновления %d: %v", update.UpdateID, r)
			}
		}()
		b.HandleUpdate(b.baseCtx, update)
	}()
}

// HandleUpdate синхронно обрабатывает одно обновление
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.ChannelPost != nil:
		msg := update.ChannelPost
		if msg.Text == "" || msg.Text[0] == '/' {
			return
		}
		b.handleAnswer(ctx, msg)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Text == "" || msg.Chat == nil {
		return
	}
	if msg.Text[0] == '/' {
		cmd, ok := parseCommand(msg.Text, b.opts.Username)
		if !ok {
			return
		}
		b.handleCommand(ctx, msg, cmd)
		return
	}
	// Сообщения ботов игнорируются, кроме анонимных админов и каналов (sender_chat задан)
	if msg.From != nil && msg.From.IsBot && msg.SenderChat == nil {
		return
	}
	b.handleAnswer(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, cmd command) {
	chatID := msg.Chat.ID
	switch cmd.Name {
	case cmdStart, cmdNext, cmdStop:
		if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
			b.reply(chatID, msgAck)
		}
	}

	var err error
	switch cmd.Name {
	case cmdStart:
		err = b.handleStart(ctx, chatID, cmd.Args)
	case cmdNext:
		err = b.handleNext(ctx, chatID)
	case cmdStop:
		err = b.handleStop(ctx, chatID)
	case cmdStats:
		if b.requireAdmin(msg) {
			err = b.handleStats(ctx, chatID)
		}
	case cmdReplenish:
		if b.requireAdmin(msg) {
			err = b.handleReplenish(ctx, chatID, cmd.Args)
		}
	default:
		return
	}
	if err != nil {
		log.Printf("[Bot] Ошибка команды /%s в чате %d: %v", cmd.Name, chatID, err)
		b.reply(chatID, msgInternalError)
	}
}

func (b *Bot) requireAdmin(msg *tgbotapi.Message) bool {
	if b.opts.AdminUserID != 0 && msg.From != nil && msg.From.ID == b.opts.AdminUserID {
		return true
	}
	b.reply(msg.Chat.ID, msgAdminOnly)
	return false
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, args []string) error {
	filter, err := parseStartArgs(args, b.game.Defaults())
	if err != nil {
		b.reply(chatID, msgUsageStart)
		return nil
	}

	out, err := b.game.Start(ctx, chatID, filter)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			b.reply(chatID, msgUsageStart)
			return nil
		}
		return err
	}

	switch out.Status {
	case game.StartQuestion:
		b.deliver(ctx, chatID, out.Question)
	case game.StartWaiting:
		b.reply(chatID, msgStartWaiting)
	case game.StartAlreadyRunning:
		b.reply(chatID, msgAlreadyRunning)
	case game.StartReplenishPending:
		b.reply(chatID, msgReplenishWait)
	}
	return nil
}

func (b *Bot) handleNext(ctx context.Context, chatID int64) error {
	out, err := b.game.Reveal(ctx, chatID)
	if err != nil {
		return err
	}

	switch out.Status {
	case game.RevealAnswer:
		if out.Question != nil {
			b.replyHTML(chatID, FormatAnswer(out.Question))
		}
		b.scheduleAdvance(chatID)
	case game.RevealPending:
		b.reply(chatID, msgNextOnTheWay)
	case game.RevealIdle:
		b.reply(chatID, msgNoActive)
	case game.RevealWaiting:
		return b.resumeWaiting(ctx, chatID)
	}
	return nil
}

// resumeWaiting пробует продолжить игру, а если вопросов все еще нет,
// дожидается пополнения и пробует еще раз
func (b *Bot) resumeWaiting(ctx context.Context, chatID int64) error {
	resumed, err := b.game.Resume(ctx, chatID)
	if err != nil {
		return err
	}
	if resumed.Status == game.AdvanceQuestion {
		b.deliver(ctx, chatID, resumed.Question)
		return nil
	}
	b.reply(chatID, msgStillWaiting)
	if b.replenisher == nil {
		return nil
	}

	if _, err := b.replenisher.Ensure(ctx); err != nil {
		log.Printf("[Bot] Ошибка ожидания пополнения для чата %d: %v", chatID, err)
		return nil
	}
	// Если чат уже продолжен слушателем пополнения, Resume вернет AdvanceSkipped
	resumed, err = b.game.Resume(ctx, chatID)
	if err != nil {
		return err
	}
	if resumed.Status == game.AdvanceQuestion {
		b.deliver(ctx, chatID, resumed.Question)
	}
	return nil
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) error {
	stats, err := b.game.Stop(ctx, chatID)
	if err != nil {
		return err
	}
	b.reply(chatID, FormatStop(stats))
	return nil
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) error {
	stats, err := b.game.PoolStats(ctx)
	if err != nil {
		return err
	}
	usage, err := b.game.Analytics(ctx, 0)
	if err != nil {
		log.Printf("[Bot] Не удалось получить аналитику: %v", err)
		usage = nil
	}
	b.reply(chatID, FormatPoolStats(stats, usage))
	return nil
}

func (b *Bot) handleReplenish(ctx context.Context, chatID int64, args []string) error {
	if b.replenisher == nil {
		b.reply(chatID, msgInternalError)
		return nil
	}
	cursor, batches, err := parseReplenishArgs(args)
	if err != nil {
		b.reply(chatID, msgUsageReplenish)
		return nil
	}

	result, err := b.replenisher.RunManual(ctx, pool.ReasonManual, cursor, batches)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			b.reply(chatID, msgInProgress)
			return nil
		}
		return err
	}
	b.reply(chatID, report.FormatReport(result, report.TitleManual))
	return nil
}

func (b *Bot) handleAnswer(ctx context.Context, msg *tgbotapi.Message) {
	var senderChatID int64
	if msg.SenderChat != nil {
		senderChatID = msg.SenderChat.ID
	}

	out, err := b.game.SubmitAnswer(ctx, msg.Chat.ID, senderChatID, msg.Text)
	if err != nil {
		log.Printf("[Bot] Ошибка проверки ответа в чате %d: %v", msg.Chat.ID, err)
		return
	}
	if out.Status != game.AnswerCorrect || out.Question == nil {
		return
	}

	b.replyHTML(out.ChatID, FormatCorrect(displayName(msg)))
	b.replyHTML(out.ChatID, FormatAnswer(out.Question))
	b.scheduleAdvance(out.ChatID)
}

// scheduleAdvance планирует следующий вопрос после паузы
func (b *Bot) scheduleAdvance(chatID int64) {
	b.game.ScheduleAdvance(chatID, func(ctx context.Context) {
		b.advance(ctx, chatID)
	})
}

func (b *Bot) advance(ctx context.Context, chatID int64) {
	out, err := b.game.Advance(ctx, chatID)
	if err != nil {
		log.Printf("[Bot] Ошибка перехода к следующему вопросу в чате %d: %v", chatID, err)
		return
	}
	switch out.Status {
	case game.AdvanceQuestion:
		b.deliver(ctx, chatID, out.Question)
	case game.AdvanceWaiting:
		b.reply(chatID, msgPoolExhausted)
	}
}

// OnReplenished продолжает игры в чатах, ожидавших пополнения
func (b *Bot) OnReplenished(ctx context.Context, result *entity.ReplenishResult) {
	if result.AddedTotal == 0 {
		return
	}
	resumed, err := b.game.ResumeWaiting(ctx)
	if err != nil {
		log.Printf("[Bot] Ошибка возобновления игр после пополнения: %v", err)
	}
	for _, r := range resumed {
		b.deliver(ctx, r.ChatID, r.Question)
	}
}

// deliver отправляет вопрос и фиксирует доставку. При ошибке отправки игра сбрасывается.
func (b *Bot) deliver(ctx context.Context, chatID int64, q *entity.Question) {
	sent, err := b.sendQuestion(chatID, q)
	if err != nil {
		log.Printf("[Bot] Не удалось отправить вопрос %d в чат %d: %v", q.ID, chatID, err)
		if err := b.game.AbortDelivery(ctx, chatID, q.ID); err != nil {
			log.Printf("[Bot] Ошибка сброса игры в чате %d: %v", chatID, err)
		}
		b.reply(chatID, msgDeliveryFailed)
		return
	}

	recorded, err := b.game.MarkQuestionPublished(ctx, chatID, q.ID, sent.MessageID)
	if err != nil {
		log.Printf("[Bot] Ошибка учета вопроса %d в чате %d: %v", q.ID, chatID, err)
		return
	}
	if !recorded {
		log.Printf("[Bot] Вопрос %d уже был учтен для чата %d", q.ID, chatID)
	}
}

// sendQuestion отправляет карточку вопроса: фото с подписью, если есть картинка
func (b *Bot) sendQuestion(chatID int64, q *entity.Question) (tgbotapi.Message, error) {
	text := FormatQuestion(q)
	if url := q.PictureURL(b.opts.BaseURL); url != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
		if len([]rune(text)) <= maxCaptionLength {
			photo.Caption = text
			photo.ParseMode = tgbotapi.ModeHTML
			sent, err := b.api.Send(photo)
			if err == nil {
				return sent, nil
			}
			log.Printf("[Bot] Не удалось отправить фото вопроса %d, отправляю текст: %v", q.ID, err)
		} else if _, err := b.api.Send(photo); err != nil {
			log.Printf("[Bot] Не удалось отправить фото вопроса %d: %v", q.ID, err)
		}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	return b.api.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[Bot] Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}

func (b *Bot) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[Bot] Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}
