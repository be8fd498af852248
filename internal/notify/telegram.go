package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"library_desk/internal/models"
)

// Notifier announces readers who are overdue.
type Notifier interface {
	NotifyOverdue(ctx context.Context, readers []models.BorrowingReader) error
}

// ReportStore remembers which readers were already announced.
type ReportStore interface {
	MarkReported(ctx context.Context, readerID int, at time.Time) (bool, error)
	KeepReported(ctx context.Context, overdue []int) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram posts a digest of newly overdue readers to one chat and answers
// /overdue with the current list.
type Telegram struct {
	bot    sender
	chatID int64
	store  ReportStore
	now    func() time.Time

	mu      sync.Mutex
	current []models.BorrowingReader
}

func NewTelegram(token string, chatID int64, store ReportStore) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot.Debug = false
	log.Printf("telegram: authorized as %s", bot.Self.UserName)

	return newTelegram(bot, chatID, store), nil
}

func newTelegram(bot sender, chatID int64, store ReportStore) *Telegram {
	if store == nil {
		store = newMemoryReports()
	}
	return &Telegram{bot: bot, chatID: chatID, store: store, now: time.Now}
}

// NotifyOverdue sends one message listing the readers of this batch that
// have not been announced since they last became overdue.
func (t *Telegram) NotifyOverdue(ctx context.Context, readers []models.BorrowingReader) error {
	var overdue []models.BorrowingReader
	ids := make([]int, 0, len(readers))
	for _, r := range readers {
		if r.IsOverdue {
			overdue = append(overdue, r)
			ids = append(ids, r.ReaderID)
		}
	}

	t.mu.Lock()
	t.current = overdue
	t.mu.Unlock()

	if err := t.store.KeepReported(ctx, ids); err != nil {
		return err
	}

	var fresh []models.BorrowingReader
	for _, r := range overdue {
		ok, err := t.store.MarkReported(ctx, r.ReaderID, t.now())
		if err != nil {
			return err
		}
		if ok {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, digest("Độc giả mới quá hạn trả sách", fresh))); err != nil {
		return fmt.Errorf("send overdue digest: %w", err)
	}
	return nil
}

// Listen answers commands until ctx is done.
func (t *Telegram) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	defer t.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				t.handleMessage(update.Message)
			}
		}
	}
}

func (t *Telegram) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	switch msg.Command() {
	case "start":
		t.sendMessage(msg.Chat.ID, fmt.Sprintf("Xin chào! Chat id: %d. Gõ /overdue để xem độc giả quá hạn.", msg.Chat.ID))
	case "overdue":
		t.mu.Lock()
		current := append([]models.BorrowingReader(nil), t.current...)
		t.mu.Unlock()
		if len(current) == 0 {
			t.sendMessage(msg.Chat.ID, "Không có độc giả quá hạn.")
			return
		}
		t.sendMessage(msg.Chat.ID, digest("Độc giả quá hạn trả sách", current))
	}
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("telegram: send: %v", err)
	}
}

func digest(title string, readers []models.BorrowingReader) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":")
	for _, r := range readers {
		fmt.Fprintf(&b, "\n• %s", r.ReaderName)
		if r.ReaderEmail != "" {
			fmt.Fprintf(&b, " (%s)", r.ReaderEmail)
		}
		fmt.Fprintf(&b, ": %d quyển, phải trả %s", r.BorrowedCount, r.LatestDueDate)
	}
	return b.String()
}

// memoryReports is the ReportStore used without a database.
type memoryReports struct {
	mu  sync.Mutex
	ids map[int]time.Time
}

func newMemoryReports() *memoryReports {
	return &memoryReports{ids: make(map[int]time.Time)}
}

func (m *memoryReports) MarkReported(_ context.Context, readerID int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[readerID]; ok {
		return false, nil
	}
	m.ids[readerID] = at
	return true, nil
}

func (m *memoryReports) KeepReported(_ context.Context, overdue []int) error {
	keep := make(map[int]bool, len(overdue))
	for _, id := range overdue {
		keep[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.ids {
		if !keep[id] {
			delete(m.ids, id)
		}
	}
	return nil
}
