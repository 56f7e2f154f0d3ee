package api

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

const (
	requestBodyMaxSize = 1 << 20
	sourceAPI          = "api"
)

// Register wires up all API routes on the provided Echo instance. webhook may
// be nil when the bot integration is not configured.
func Register(e *echo.Echo, store Storage, auth Authenticator, ai Interpreter, bot Sender, webhook echo.HandlerFunc, logger *log.Logger) {
	e.GET("/api/health", health())

	e.GET("/api/tasks", listTasks(store, auth))
	e.POST("/api/tasks", createTask(store, auth))
	e.GET("/api/notes", listNotes(store, auth))
	e.POST("/api/notes", createNote(store, auth))
	e.GET("/api/calendar-events", listCalendarEvents(store, auth))
	e.POST("/api/calendar-events", createCalendarEvent(store, auth))
	e.GET("/api/calendar-events/:id", getCalendarEvent(store, auth))
	e.GET("/api/event-logs", listEventLogs(store, auth))

	e.GET("/api/telegram-targets", listTargets(store, auth))
	e.POST("/api/telegram-targets", saveTarget(store, auth))
	e.PATCH("/api/telegram-targets/:id", patchTarget(store, auth))
	e.DELETE("/api/telegram-targets/:id", deleteTarget(store, auth))
	e.POST("/api/telegram/test", testTelegram(store, auth, bot, logger))

	registerAI(e, store, auth, ai)

	if webhook != nil {
		e.POST("/api/telegram/webhook", webhook)
	}
}

func health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// authenticate resolves the caller and makes sure a users row exists for the
// subject. All owner-scoped handlers go through here.
func authenticate(c echo.Context, store Storage, auth Authenticator) (domain.User, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return domain.User{}, c.String(http.StatusUnauthorized, err.Error())
	}
	user, err := store.EnsureUser(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Error(err)
		return domain.User{}, c.String(http.StatusInternalServerError, err.Error())
	}
	return user, nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	return dec.Decode(out)
}

func listLimit(c echo.Context) int {
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

type taskRequest struct {
	Title  string `json:"title"`
	Status string `json:"status"`
	DueAt  string `json:"due_at"`
	Source string `json:"source"`
	Link   string `json:"link"`
}

func listTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		tasks, err := store.ListTasks(c.Request().Context(), user.ID, listLimit(c))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
	}
}

func createTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}

		var req taskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.String(http.StatusUnprocessableEntity, "title is required")
		}

		in := storage.NewTask{
			Title:  req.Title,
			Status: domain.NormalizeStatus(strings.TrimSpace(req.Status)),
			Source: strings.TrimSpace(req.Source),
			Link:   strings.TrimSpace(req.Link),
		}
		if in.Source == "" {
			in.Source = sourceAPI
		}
		if raw := strings.TrimSpace(req.DueAt); raw != "" {
			t, err := parseClientTime(ctx, store, user.ID, raw)
			if err != nil {
				return c.String(http.StatusUnprocessableEntity, "invalid due_at")
			}
			in.DueAt = &t
		}

		task, err := store.CreateTask(ctx, user.ID, in)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		payload := domain.Payload{
			"title":  task.Title,
			"status": task.Status,
			"source": task.Source,
		}
		if task.DueAt != nil {
			payload["due_at"] = task.DueAt.Format(time.RFC3339)
		}
		if task.Link != "" {
			payload["link"] = task.Link
		}
		if _, err := store.AppendLedger(ctx, user.ID, "task.created", "task", task.ID, payload); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, task)
	}
}

type noteRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func listNotes(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		notes, err := store.ListNotes(c.Request().Context(), user.ID, listLimit(c))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"notes": notes})
	}
}

func createNote(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}

		var req noteRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.String(http.StatusUnprocessableEntity, "title is required")
		}

		tags := make([]string, 0, len(req.Tags))
		for _, t := range req.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}

		note, err := store.CreateNote(ctx, user.ID, storage.NewNote{Title: req.Title, Body: req.Body, Tags: tags})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		payload := domain.Payload{"title": note.Title}
		if note.Body != "" {
			payload["body"] = note.Body
		}
		if len(note.Tags) > 0 {
			payload["tags"] = note.Tags
		}
		if _, err := store.AppendLedger(ctx, user.ID, "note.created", "note", note.ID, payload); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, note)
	}
}

type calendarEventRequest struct {
	Title              string `json:"title"`
	StartAt            string `json:"start_at"`
	EndAt              string `json:"end_at"`
	RemindBeforeMinute *int   `json:"remind_before_minute"`
	RelatedType        string `json:"related_type"`
	RelatedID          *int64 `json:"related_id"`
}

func listCalendarEvents(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		events, err := store.ListCalendarEvents(c.Request().Context(), user.ID, listLimit(c))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"events": events})
	}
}

func createCalendarEvent(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}

		var req calendarEventRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || strings.TrimSpace(req.StartAt) == "" {
			return c.String(http.StatusUnprocessableEntity, "title and start_at are required")
		}

		startAt, err := parseClientTime(ctx, store, user.ID, req.StartAt)
		if err != nil {
			return c.String(http.StatusUnprocessableEntity, "invalid start_at")
		}
		var endAt *time.Time
		if raw := strings.TrimSpace(req.EndAt); raw != "" {
			t, err := parseClientTime(ctx, store, user.ID, raw)
			if err != nil {
				return c.String(http.StatusUnprocessableEntity, "invalid end_at")
			}
			endAt = &t
		}

		remind := 10
		if req.RemindBeforeMinute != nil {
			remind = *req.RemindBeforeMinute
		}
		if remind < 0 {
			remind = 0
		}
		if remind > 10080 {
			remind = 10080
		}

		event, err := store.CreateCalendarEvent(ctx, user.ID, storage.NewCalendarEvent{
			Title:              req.Title,
			StartAt:            startAt,
			EndAt:              endAt,
			RemindBeforeMinute: remind,
			RelatedType:        strings.TrimSpace(req.RelatedType),
			RelatedID:          req.RelatedID,
		})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		payload := domain.Payload{
			"title":                event.Title,
			"start_at":             event.StartAt.Format(time.RFC3339),
			"remind_before_minute": event.RemindBeforeMinute,
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
		if _, err := store.AppendLedger(ctx, user.ID, "calendar_event.created", "calendar_event", event.ID, payload); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, event)
	}
}

func getCalendarEvent(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid id")
		}
		event, err := store.GetCalendarEvent(c.Request().Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			return c.String(http.StatusNotFound, "event not found")
		}
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		// Foreign events read as absent.
		if event.UserID != user.ID {
			return c.String(http.StatusNotFound, "event not found")
		}
		return c.JSON(http.StatusOK, event)
	}
}

func listEventLogs(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		entries, err := store.ListLedger(c.Request().Context(), user.ID, listLimit(c))
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"event_logs": entries})
	}
}

type targetRequest struct {
	Type    string `json:"type"`
	ChatID  string `json:"chat_id"`
	Enabled *bool  `json:"enabled"`
}

func listTargets(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		targets, err := store.ListTargets(c.Request().Context(), user.ID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{"targets": targets})
	}
}

func saveTarget(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}

		var req targetRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Type = strings.TrimSpace(req.Type)
		req.ChatID = strings.TrimSpace(req.ChatID)
		if req.Type != "channel" && req.Type != "private" {
			return c.String(http.StatusUnprocessableEntity, "type must be channel or private")
		}
		if req.ChatID == "" {
			return c.String(http.StatusUnprocessableEntity, "chat_id is required")
		}
		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}

		target, created, err := store.UpsertTarget(c.Request().Context(), user.ID, req.Type, req.ChatID, enabled)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		// A private target doubles as the user's direct chat linkage, which the
		// webhook uses to resolve command senders.
		if req.Type == "private" && enabled {
			if err := store.LinkUserChat(c.Request().Context(), user.ID, req.ChatID); err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		return c.JSON(status, target)
	}
}

func patchTarget(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid id")
		}

		var req targetRequest
		if err := decodeBody(c, &req); err != nil || req.Enabled == nil {
			return c.String(http.StatusBadRequest, "enabled is required")
		}
		if err := store.SetTargetEnabled(c.Request().Context(), user.ID, id, *req.Enabled); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, "target not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTarget(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid id")
		}
		if err := store.DeleteTarget(c.Request().Context(), user.ID, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.String(http.StatusNotFound, "target not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// testTelegram sends a probe message to every enabled target and reports the
// per-target outcome without failing the request.
func testTelegram(store Storage, auth Authenticator, bot Sender, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		if bot == nil || !bot.Configured() {
			return c.String(http.StatusServiceUnavailable, "telegram bot is not configured")
		}

		targets, err := store.EnabledTargets(ctx, user.ID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		results := make([]map[string]any, 0, len(targets))
		for _, target := range targets {
			entry := map[string]any{"id": target.ID, "chat_id": target.ChatID, "ok": true}
			msg := fmt.Sprintf("Test notification ✅\ntarget: %s (%s)", target.ChatID, target.Type)
			if err := bot.SendMessage(ctx, target.ChatID, msg); err != nil {
				logger.WithError(err).WithField("chat_id", target.ChatID).Warn("test message failed")
				entry["ok"] = false
				entry["error"] = err.Error()
			}
			results = append(results, entry)
		}
		return c.JSON(http.StatusOK, map[string]any{"results": results})
	}
}

var clientTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseClientTime parses a client-supplied timestamp. Layouts without an
// offset are interpreted in the owner's timezone.
func parseClientTime(ctx context.Context, store Storage, userID, raw string) (time.Time, error) {
	loc := store.UserLocation(ctx, userID, time.UTC)
	raw = strings.TrimSpace(raw)
	for _, layout := range clientTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
