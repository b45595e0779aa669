package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"onyx-api/configs"
	v1 "onyx-api/internal/api/v1"
	"onyx-api/internal/assistant"
	"onyx-api/internal/config"
	"onyx-api/internal/middleware"
	"onyx-api/internal/milestone"
	"onyx-api/internal/repository"
	"onyx-api/pkg/database"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	logger.InitLoggers()

	cfg := configs.LoadConfig()
	if cfg.DBNameTest != "" {
		cfg.DBName = cfg.DBNameTest
	}
	if cfg.JWTSecret != "" {
		config.SecretKey = []byte(cfg.JWTSecret)
	}

	config.DB = database.ConnectDB(cfg)
	repository.DeleteAllTable(config.DB)
	repository.CreateTableIfNotExists(config.DB)

	code := m.Run()

	config.DB.Close()
	os.Exit(code)
}

type stubChat struct {
	content string
}

func (s *stubChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
		Usage: openai.Usage{TotalTokens: 10},
	}, nil
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	v1.RegisterRoutes(app)
	return app
}

func newToken(userID, email string) string {
	claims := jwt.MapClaims{
		"issuer": userID,
		"email":  email,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := token.SignedString(config.SecretKey)
	return signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	result := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &result))
	}
	return resp.StatusCode, result
}

func registerUser(t *testing.T, app *fiber.App, userID string) string {
	t.Helper()
	token := newToken(userID, userID+"@example.com")
	status, _ := doRequest(t, app, http.MethodPost, "/api/v1/users", token, fiber.Map{})
	require.Equal(t, http.StatusCreated, status)
	return token
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	app := newApp()

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/tasks", "", nil)

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestCreateUserSeedsOnboardingTasks(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("onboard"))

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/tasks", token, nil)

	require.Equal(t, http.StatusOK, status)
	tasks, ok := body["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tasks, 3)
}

func TestCreateTaskRejectsPastDueDate(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("duedate"))

	past := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", token, fiber.Map{
		"title":    "Time travel",
		"due_date": past,
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Due date cannot be in the past", body["message"])
}

func TestCreateTaskAllowsRepeatingFreeTextDueDate(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("repeat"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", token, fiber.Map{
		"title":        "Weekly review",
		"due_date":     "Mondays at 4pm",
		"is_repeating": true,
	})

	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Mondays at 4pm", data(body)["due_date"])
}

func TestTaskOwnershipIsolation(t *testing.T) {
	app := newApp()
	tokenA := registerUser(t, app, uniqueID("owner-a"))
	tokenB := registerUser(t, app, uniqueID("owner-b"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", tokenA, fiber.Map{
		"title": "Private task",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(data(body)["id"].(float64))

	status, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", taskID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodPut, fmt.Sprintf("/api/v1/tasks/%d", taskID), tokenB, fiber.Map{"title": "Stolen"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", taskID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// The owner still sees it untouched.
	status, body = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", taskID), tokenA, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Private task", data(body)["title"])
}

func TestSoftDeletedTaskDisappears(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("softdel"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", token, fiber.Map{
		"title": "Ephemeral",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(data(body)["id"].(float64))

	status, _ = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", taskID), token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", taskID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Deleting again is also a 404: the row is already gone from view.
	status, _ = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", taskID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestToggleTaskFlipsCompletion(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("toggle"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", token, fiber.Map{
		"title": "Flip me",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(data(body)["id"].(float64))
	require.Nil(t, data(body)["completed_at"])

	status, body = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/toggle", taskID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, data(body)["completed_at"])

	status, body = doRequest(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/tasks/%d/toggle", taskID), token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, data(body)["completed_at"])
}

func TestFolderLifecycle(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("folders"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/folders", token, fiber.Map{"name": "Work"})
	require.Equal(t, http.StatusCreated, status)
	folderID := int(data(body)["id"].(float64))

	status, body = doRequest(t, app, http.MethodPut, fmt.Sprintf("/api/v1/folders/%d", folderID), token, fiber.Map{"name": "Deep Work"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Deep Work", data(body)["name"])

	status, _ = doRequest(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/folders/%d", folderID), token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/folders/%d", folderID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubtaskRequiresOwnedTask(t *testing.T) {
	app := newApp()
	tokenA := registerUser(t, app, uniqueID("sub-a"))
	tokenB := registerUser(t, app, uniqueID("sub-b"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", tokenA, fiber.Map{"title": "Parent"})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(data(body)["id"].(float64))

	status, _ = doRequest(t, app, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/subtasks", taskID), tokenB, fiber.Map{"title": "Sneaky"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doRequest(t, app, http.MethodPost, fmt.Sprintf("/api/v1/tasks/%d/subtasks", taskID), tokenA, fiber.Map{"title": "Legit"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Legit", data(body)["title"])
}

func TestDailyQuotaEnforcedForFreeTier(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("quota"))
	assistant.Chat = &stubChat{content: "Stub answer"}

	for i := 0; i < 3; i++ {
		status, _ := doRequest(t, app, http.MethodPost, "/api/v1/ai/message", token, fiber.Map{
			"message": fmt.Sprintf("question %d", i+1),
			"type":    "general_assistant",
		})
		require.Equal(t, http.StatusCreated, status, "request %d should be within quota", i+1)
	}

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/ai/message", token, fiber.Map{
		"message": "one too many",
		"type":    "general_assistant",
	})

	require.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["message"], "Daily limit of 3 AI questions exceeded")

	info, ok := body["subscription_info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "free", info["tier"])
	assert.Equal(t, float64(0), info["remaining"])

	// The denied question is still persisted and echoed back, with no AI reply.
	denied := data(body)
	userMsg, _ := denied["user_message"].(map[string]interface{})
	require.NotNil(t, userMsg)
	assert.Equal(t, "one too many", userMsg["message"])
	assert.Equal(t, true, userMsg["from_user"])
	_, hasReply := denied["ai_response"]
	assert.False(t, hasReply)

	status, body = doRequest(t, app, http.MethodGet, "/api/v1/assistant/messages", token, nil)
	require.Equal(t, http.StatusOK, status)
	messages, ok := body["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 7) // 3 question/answer pairs plus the denied question

	// Date parsing draws from the same quota, so it is denied too.
	status, _ = doRequest(t, app, http.MethodPost, "/api/v1/ai/parse-date", token, fiber.Map{
		"input": "tomorrow at noon",
	})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestAIMessagePersistsBothSides(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("aimsg"))
	assistant.Chat = &stubChat{content: "Here is my advice."}

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/tasks", token, fiber.Map{"title": "Plan trip"})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(data(body)["id"].(float64))

	status, body = doRequest(t, app, http.MethodPost, "/api/v1/ai/message", token, fiber.Map{
		"message": "How should I start?",
		"type":    "task_specific",
		"task_id": taskID,
	})
	require.Equal(t, http.StatusCreated, status)

	result := data(body)
	userMsg, _ := result["user_message"].(map[string]interface{})
	aiMsg, _ := result["ai_response"].(map[string]interface{})
	require.NotNil(t, userMsg)
	require.NotNil(t, aiMsg)
	assert.Equal(t, true, userMsg["from_user"])
	assert.Equal(t, true, aiMsg["from_ai"])

	status, body = doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d/messages", taskID), token, nil)
	require.Equal(t, http.StatusOK, status)
	messages, ok := body["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestSubscriptionStatusForFreeUser(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("substatus"))

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/ai/subscription-status", token, nil)

	require.Equal(t, http.StatusOK, status)
	d := data(body)
	sub, _ := d["subscription"].(map[string]interface{})
	usage, _ := d["usage"].(map[string]interface{})
	require.NotNil(t, sub)
	require.NotNil(t, usage)
	assert.Equal(t, "free", sub["tier"])
	assert.Equal(t, float64(3), usage["limit"])
	assert.Equal(t, true, usage["allowed"])
}

func TestMilestoneMarkSeenIsIdempotent(t *testing.T) {
	uid := uniqueID("milestone")
	app := newApp()
	registerUser(t, app, uid)

	require.NoError(t, milestone.MarkSeen(uid, milestone.TypeTasks100Completed))
	require.NoError(t, milestone.MarkSeen(uid, milestone.TypeTasks100Completed))

	milestones, err := milestone.GetUserMilestones(uid)
	require.NoError(t, err)
	assert.Len(t, milestones, 1)
}

func TestHundredTasksMilestoneNotifiesExactlyOnce(t *testing.T) {
	uid := uniqueID("hundred")
	app := newApp()
	registerUser(t, app, uid)

	_, err := config.DB.Exec(`
		INSERT INTO tasks (user_id, title, completed_at)
		SELECT $1, 'Done ' || n, NOW() FROM generate_series(1, 99) n`, uid)
	require.NoError(t, err)

	// A completed task that was soft-deleted afterwards does not count.
	_, err = config.DB.Exec(
		"INSERT INTO tasks (user_id, title, completed_at, deleted_at) VALUES ($1, 'Gone', NOW(), NOW())",
		uid,
	)
	require.NoError(t, err)
	assert.Nil(t, milestone.CheckTaskCompletionMilestone(uid))

	_, err = config.DB.Exec(
		"INSERT INTO tasks (user_id, title, completed_at) VALUES ($1, 'The hundredth', NOW())",
		uid,
	)
	require.NoError(t, err)

	notification := milestone.CheckTaskCompletionMilestone(uid)
	require.NotNil(t, notification)
	assert.Equal(t, milestone.TypeTasks100Completed, notification.Milestone)
	assert.Equal(t, 100, notification.CompletedTasks)

	// Crossing the threshold notifies once; later checks stay quiet.
	assert.Nil(t, milestone.CheckTaskCompletionMilestone(uid))
}

func TestStripeRoutesMatchClientPaths(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("stripe"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/stripe/create-checkout-session", token, fiber.Map{
		"tier": "gold",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Tier must be premium or plaid", body["message"])

	// A user with no stripe customer gets a 404, proving the route is wired.
	status, body = doRequest(t, app, http.MethodPost, "/api/v1/stripe/customer-portal", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No billing account found", body["message"])
}

func TestGmailConnectRequiresPaidTier(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("gmail"))

	status, body := doRequest(t, app, http.MethodPost, "/api/v1/integrations/gmail/connect", token, fiber.Map{
		"token": "oauth-token-abc",
	})

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["success"])
}

func TestIntegrationsDefaultRow(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("integrations"))

	status, body := doRequest(t, app, http.MethodGet, "/api/v1/integrations", token, nil)

	require.Equal(t, http.StatusOK, status)
	d := data(body)
	assert.Equal(t, false, d["gmail"])
	assert.Equal(t, true, d["status"])
}

func TestLegacyUnversionedRoutesMirrorV1(t *testing.T) {
	app := newApp()
	token := registerUser(t, app, uniqueID("legacy"))

	status, _ := doRequest(t, app, http.MethodGet, "/tasks", token, nil)

	assert.Equal(t, http.StatusOK, status)
}
