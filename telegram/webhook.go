package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"lifelog-api/domain"
	"lifelog-api/storage"
)

const sourceTelegramCommand = "telegram.command"

// WebhookHandler runs the per-message command state machine:
// extract → builtin → resolve owner → interpret → allow-list → execute → reply.
// Business failures never surface as transport errors; the platform always
// receives {ok:true}.
type WebhookHandler struct {
	store   Store
	ai      Interpreter
	bot     Sender
	deduper Deduper
	loc     *time.Location
	logger  *log.Logger
}

// NewWebhookHandler wires the webhook state machine. deduper may be nil.
func NewWebhookHandler(store Store, ai Interpreter, bot Sender, deduper Deduper, loc *time.Location, logger *log.Logger) *WebhookHandler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &WebhookHandler{store: store, ai: ai, bot: bot, deduper: deduper, loc: loc, logger: logger}
}

type chatRef struct {
	ID *int64 `json:"id"`
}

type inboundMessage struct {
	Chat *chatRef `json:"chat"`
	Text string   `json:"text"`
}

type update struct {
	UpdateID    int64           `json:"update_id"`
	Message     *inboundMessage `json:"message"`
	ChannelPost *inboundMessage `json:"channel_post"`
}

// Handle processes one webhook update.
func (h *WebhookHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return h.ack(c)
	}
	var upd update
	if err := sonic.Unmarshal(body, &upd); err != nil {
		return h.ack(c)
	}

	h.logger.WithFields(log.Fields{
		"update_id":        upd.UpdateID,
		"has_message":      upd.Message != nil,
		"has_channel_post": upd.ChannelPost != nil,
	}).Info("telegram webhook update")

	// Telegram redelivers updates until acknowledged; the deduper keeps the
	// pipeline at-most-once in practice.
	if h.deduper != nil && upd.UpdateID != 0 {
		added, err := h.deduper.Add(ctx, "tg-update", strconv.FormatInt(upd.UpdateID, 10))
		if err != nil {
			h.logger.WithError(err).Warn("webhook dedup unavailable, processing anyway")
		} else if !added {
			return h.ack(c)
		}
	}

	msg := upd.Message
	if msg == nil {
		msg = upd.ChannelPost
	}
	if msg == nil || msg.Chat == nil || msg.Chat.ID == nil {
		return h.ack(c)
	}

	chatID := strconv.FormatInt(*msg.Chat.ID, 10)
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return h.ack(c)
	}

	if strings.HasPrefix(text, "/start") || strings.HasPrefix(text, "/help") {
		h.reply(ctx, chatID, strings.Join([]string{
			"Lifelog bot ✅",
			"Your chat_id: " + chatID,
			"",
			"Link your account:",
			"- Open Dashboard → Telegram → Save target",
			"- type=private, chat_id=<your chat_id>",
			"",
			"Then you can send natural commands like:",
			`- "Meeting today at 14:00 until 15:00, remind me 10 min before"`,
			`- "buy milk tomorrow"`,
		}, "\n"))
		return h.ack(c)
	}

	user, ok := h.resolveOwner(ctx, chatID)
	if !ok {
		h.reply(ctx, chatID, strings.Join([]string{
			"I can't find your account for chat_id=" + chatID + ".",
			"Please link it in Dashboard → Telegram → Save target (type=private).",
			"",
			"After linking, send your command again.",
		}, "\n"))
		return h.ack(c)
	}

	if err := h.execute(ctx, user, chatID, text); err != nil {
		h.reply(ctx, chatID, "❌ Error: "+err.Error())
	}
	return h.ack(c)
}

func (h *WebhookHandler) ack(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// resolveOwner is the authorization boundary: direct chat linkage first, then
// an enabled notification target with a matching chat id. No action executes
// for an unresolved owner.
func (h *WebhookHandler) resolveOwner(ctx context.Context, chatID string) (domain.User, bool) {
	user, err := h.store.UserByChatID(ctx, chatID)
	if err == nil {
		return user, true
	}
	if !errors.Is(err, storage.ErrNotFound) {
		h.logger.WithError(err).Error("resolve owner by chat failed")
		return domain.User{}, false
	}

	target, err := h.store.EnabledTargetByChatID(ctx, chatID)
	if err != nil {
		return domain.User{}, false
	}
	user, err = h.store.GetUser(ctx, target.UserID)
	if err != nil {
		return domain.User{}, false
	}
	return user, true
}

// execute interprets the text and performs at most one allow-listed creation
// action. Interpretation failures are never retried.
func (h *WebhookHandler) execute(ctx context.Context, user domain.User, chatID, text string) error {
	plan, err := h.ai.ParseCommand(ctx, text)
	if err != nil {
		return err
	}

	kind, allowed := domain.AllowedAction(plan.Action.Method, plan.Action.Path)
	if !allowed {
		h.reply(ctx, chatID, strings.Join([]string{
			"Sorry, I cannot execute this action yet.",
			"intent: " + plan.Intent,
			"path: " + plan.Action.Path,
			"",
			"Try a create command for task/event/note.",
		}, "\n"))
		return nil
	}

	body := plan.Action.Body
	switch kind {
	case domain.ActionCreateTask:
		return h.createTask(ctx, user, chatID, body)
	case domain.ActionCreateCalendarEvent:
		return h.createCalendarEvent(ctx, user, chatID, body)
	case domain.ActionCreateNote:
		return h.createNote(ctx, user, chatID, body)
	}
	return nil
}

func (h *WebhookHandler) createTask(ctx context.Context, user domain.User, chatID string, body map[string]any) error {
	title := strings.TrimSpace(stringField(body, "title"))
	if title == "" {
		return errors.New("task title is required")
	}

	status := strings.TrimSpace(stringField(body, "status"))
	if status == "" {
		status = "todo"
	}
	status = domain.NormalizeStatus(status)

	var dueAt *time.Time
	if raw := stringField(body, "due_at"); strings.TrimSpace(raw) != "" {
		t, err := h.parseTime(raw)
		if err != nil {
			return fmt.Errorf("invalid due_at: %w", err)
		}
		dueAt = &t
	}

	task, err := h.store.CreateTask(ctx, user.ID, storage.NewTask{
		Title:  title,
		Status: status,
		DueAt:  dueAt,
		Source: sourceTelegramCommand,
	})
	if err != nil {
		return err
	}

	payload := domain.Payload{
		"title":              task.Title,
		"status":             task.Status,
		"source":             task.Source,
		domain.OriginChatKey: chatID,
	}
	if task.DueAt != nil {
		payload["due_at"] = task.DueAt.Format(time.RFC3339)
	}
	if _, err := h.store.AppendLedger(ctx, user.ID, "task.created", "task", task.ID, payload); err != nil {
		return err
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Task created (#%d): %s", task.ID, task.Title))
	return nil
}

func (h *WebhookHandler) createCalendarEvent(ctx context.Context, user domain.User, chatID string, body map[string]any) error {
	title := strings.TrimSpace(stringField(body, "title"))
	startRaw := strings.TrimSpace(stringField(body, "start_at"))
	if title == "" || startRaw == "" {
		return errors.New("event title and start_at are required")
	}

	startAt, err := h.parseTime(startRaw)
	if err != nil {
		return fmt.Errorf("invalid start_at: %w", err)
	}
	var endAt *time.Time
	if raw := stringField(body, "end_at"); strings.TrimSpace(raw) != "" {
		t, err := h.parseTime(raw)
		if err != nil {
			return fmt.Errorf("invalid end_at: %w", err)
		}
		endAt = &t
	}

	remind := 10
	if v, ok := body["remind_before_minute"]; ok {
		if f, ok := v.(float64); ok {
			remind = int(f)
		}
	}
	if remind < 0 {
		remind = 0
	}
	if remind > 10080 {
		remind = 10080
	}

	var relatedID *int64
	if f, ok := body["related_id"].(float64); ok {
		v := int64(f)
		relatedID = &v
	}

	event, err := h.store.CreateCalendarEvent(ctx, user.ID, storage.NewCalendarEvent{
		Title:              title,
		StartAt:            startAt,
		EndAt:              endAt,
		RemindBeforeMinute: remind,
		RelatedType:        strings.TrimSpace(stringField(body, "related_type")),
		RelatedID:          relatedID,
	})
	if err != nil {
		return err
	}

	payload := domain.Payload{
		"title":                event.Title,
		"start_at":             event.StartAt.Format(time.RFC3339),
		"remind_before_minute": event.RemindBeforeMinute,
		domain.OriginChatKey:   chatID,
	}
	if event.EndAt != nil {
		payload["end_at"] = event.EndAt.Format(time.RFC3339)
	}
	if event.RelatedType != "" {
		payload["related_type"] = event.RelatedType
	}
	if event.RelatedID != nil {
		payload["related_id"] = *event.RelatedID
	}
	if _, err := h.store.AppendLedger(ctx, user.ID, "calendar_event.created", "calendar_event", event.ID, payload); err != nil {
		return err
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Event created (#%d): %s\nstart: %s",
		event.ID, event.Title, event.StartAt.In(h.loc).Format("2006-01-02 15:04")))
	return nil
}

func (h *WebhookHandler) createNote(ctx context.Context, user domain.User, chatID string, body map[string]any) error {
	title := strings.TrimSpace(stringField(body, "title"))
	if title == "" {
		return errors.New("note title is required")
	}

	var tags []string
	switch v := body["tags"].(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if t := strings.TrimSpace(part); t != "" {
				tags = append(tags, t)
			}
		}
	case []any:
		for _, raw := range v {
			if s, ok := raw.(string); ok {
				if t := strings.TrimSpace(s); t != "" {
					tags = append(tags, t)
				}
			}
		}
	}

	note, err := h.store.CreateNote(ctx, user.ID, storage.NewNote{
		Title: title,
		Body:  stringField(body, "body"),
		Tags:  tags,
	})
	if err != nil {
		return err
	}

	payload := domain.Payload{
		"title":              note.Title,
		domain.OriginChatKey: chatID,
	}
	if note.Body != "" {
		payload["body"] = note.Body
	}
	if len(note.Tags) > 0 {
		payload["tags"] = note.Tags
	}
	if _, err := h.store.AppendLedger(ctx, user.ID, "note.created", "note", note.ID, payload); err != nil {
		return err
	}

	h.reply(ctx, chatID, fmt.Sprintf("✅ Note created (#%d): %s", note.ID, note.Title))
	return nil
}

// reply sends a direct message to the origin chat, bypassing the dispatcher.
func (h *WebhookHandler) reply(ctx context.Context, chatID, text string) {
	if err := h.bot.SendMessage(ctx, chatID, text); err != nil {
		h.logger.WithError(err).Warn("telegram reply failed")
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (h *WebhookHandler) parseTime(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, h.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
