package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type textRequest struct {
	Text string `json:"text"`
}

func registerAI(e *echo.Echo, store Storage, auth Authenticator, interp Interpreter) {
	e.POST("/api/ai/extract-tasks", aiExtractTasks(store, auth, interp))
	e.POST("/api/ai/title-tags", aiTitleTags(store, auth, interp))
	e.POST("/api/ai/parse-command", aiParseCommand(store, auth, interp))
	e.POST("/api/ai/tone", aiTone(store, auth, interp))
	e.GET("/api/ai/weekly-digest", aiWeeklyDigest(store, auth, interp))
}

func readText(c echo.Context) (string, bool) {
	var req textRequest
	if err := decodeBody(c, &req); err != nil {
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	return text, text != ""
}

func aiExtractTasks(store Storage, auth Authenticator, interp Interpreter) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, store, auth); err != nil {
			return nil
		}
		text, ok := readText(c)
		if !ok {
			return c.String(http.StatusUnprocessableEntity, "text is required")
		}
		tasks, err := interp.ExtractTasks(c.Request().Context(), text)
		if err != nil {
			return writeAIError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
	}
}

func aiTitleTags(store Storage, auth Authenticator, interp Interpreter) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, store, auth); err != nil {
			return nil
		}
		text, ok := readText(c)
		if !ok {
			return c.String(http.StatusUnprocessableEntity, "text is required")
		}
		out, err := interp.TitleAndTags(c.Request().Context(), text)
		if err != nil {
			return writeAIError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	}
}

// aiParseCommand exposes the interpreter without the executor. The returned
// plan is advisory; nothing is created here.
func aiParseCommand(store Storage, auth Authenticator, interp Interpreter) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, store, auth); err != nil {
			return nil
		}
		text, ok := readText(c)
		if !ok {
			return c.String(http.StatusUnprocessableEntity, "text is required")
		}
		plan, err := interp.ParseCommand(c.Request().Context(), text)
		if err != nil {
			return writeAIError(c, err)
		}
		return c.JSON(http.StatusOK, plan)
	}
}

func aiTone(store Storage, auth Authenticator, interp Interpreter) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := authenticate(c, store, auth); err != nil {
			return nil
		}
		text, ok := readText(c)
		if !ok {
			return c.String(http.StatusUnprocessableEntity, "text is required")
		}
		report, err := interp.ClassifyTone(c.Request().Context(), text)
		if err != nil {
			return writeAIError(c, err)
		}
		return c.JSON(http.StatusOK, report)
	}
}

func aiWeeklyDigest(store Storage, auth Authenticator, interp Interpreter) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, err := authenticate(c, store, auth)
		if err != nil {
			return nil
		}
		stats, err := store.WeeklyStats(ctx, user.ID, time.Now().UTC(), user.Timezone)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		digest, err := interp.WeeklyDigest(ctx, stats)
		if err != nil {
			return writeAIError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"digest": digest, "stats": stats})
	}
}
