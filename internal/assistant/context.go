package assistant

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"onyx-api/internal/config"
	"onyx-api/internal/models"

	"github.com/lib/pq"
)

// ErrTaskNotFound covers both a missing task and a task owned by someone
// else, so the handler can answer 404 without leaking existence.
var ErrTaskNotFound = fmt.Errorf("task not found")

// TaskContext is everything the generators get to see about one task.
type TaskContext struct {
	Task     models.Task            `json:"task"`
	Folder   *models.Folder         `json:"folder"`
	Notes    []models.Note          `json:"notes"`
	Subtasks []models.Subtask       `json:"subtasks"`
	History  []models.TaskAIMessage `json:"history"`
	Metadata TaskMetadata           `json:"metadata"`
}

type TaskMetadata struct {
	IsOverdue         bool `json:"is_overdue"`
	IsCompleted       bool `json:"is_completed"`
	SubtaskCount      int  `json:"subtask_count"`
	CompletedSubtasks int  `json:"completed_subtasks"`
	NoteCount         int  `json:"note_count"`
}

// AssistantContext is the cross-task picture for the general assistant:
// whatever the client says is on screen, plus aggregate stats and recent
// activity.
type AssistantContext struct {
	Tasks          []models.Task             `json:"tasks"`
	Folders        []models.Folder           `json:"folders"`
	Stats          UserStats                 `json:"user_stats"`
	RecentActivity []models.AssistantMessage `json:"recent_activity"`
	ViewInfo       ViewInfo                  `json:"view_info"`
}

type UserStats struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	PendingTasks   int `json:"pending_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
	TotalFolders   int `json:"total_folders"`
}

// ViewInfo echoes what the client reported as visible. When nothing is
// reported the context falls back to recent tasks and all folders.
type ViewInfo struct {
	VisibleTaskIDs   []int  `json:"visible_task_ids"`
	VisibleFolderIDs []int  `json:"visible_folder_ids"`
	CurrentView      string `json:"current_view"`
	UsedFallback     bool   `json:"used_fallback"`
}

// ViewContext is the client-supplied slice of the UI.
type ViewContext struct {
	VisibleTaskIDs   []int  `json:"visible_task_ids"`
	VisibleFolderIDs []int  `json:"visible_folder_ids"`
	CurrentView      string `json:"current_view"`
}

// RetrievedItem is one search hit used to ground a RAG answer.
type RetrievedItem struct {
	Source  string
	Title   string
	Content string
}

// GatherTaskContext loads a task the user owns together with its notes,
// subtasks, message history and folder. Soft-deleted rows never surface.
func GatherTaskContext(userID string, taskID int) (*TaskContext, error) {
	var t models.Task
	err := config.DB.QueryRow(`
		SELECT id, folder_id, user_id, title, description, due_date, is_repeating,
		       completed_at, last_ai_message_id, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`,
		taskID, userID,
	).Scan(&t.ID, &t.FolderID, &t.UserID, &t.Title, &t.Description, &t.DueDate,
		&t.IsRepeating, &t.CompletedAt, &t.LastAIMessageID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	ctx := &TaskContext{Task: t}

	if t.FolderID != nil {
		var f models.Folder
		err := config.DB.QueryRow(
			"SELECT id, user_id, name, created_at, updated_at FROM folders WHERE id = $1 AND deleted_at IS NULL",
			*t.FolderID,
		).Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
		if err == nil {
			ctx.Folder = &f
		} else if err != sql.ErrNoRows {
			return nil, err
		}
	}

	notes, err := taskNotes(userID, taskID)
	if err != nil {
		return nil, err
	}
	ctx.Notes = notes

	subtasks, err := taskSubtasks(userID, taskID)
	if err != nil {
		return nil, err
	}
	ctx.Subtasks = subtasks

	history, err := taskHistory(userID, taskID, 20)
	if err != nil {
		return nil, err
	}
	ctx.History = history

	completedSubs := 0
	for _, s := range subtasks {
		if s.CompletedAt != nil {
			completedSubs++
		}
	}
	ctx.Metadata = TaskMetadata{
		IsOverdue:         isOverdue(t),
		IsCompleted:       t.CompletedAt != nil,
		SubtaskCount:      len(subtasks),
		CompletedSubtasks: completedSubs,
		NoteCount:         len(notes),
	}

	return ctx, nil
}

// isOverdue parses the free-text due date where possible. Unparseable
// values (repeating schedules like "Mondays at 4pm") are never overdue.
func isOverdue(t models.Task) bool {
	if t.DueDate == nil || t.CompletedAt != nil {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if due, err := time.Parse(layout, *t.DueDate); err == nil {
			return due.Before(time.Now())
		}
	}
	return false
}

func taskNotes(userID string, taskID int) ([]models.Note, error) {
	rows, err := config.DB.Query(`
		SELECT id, task_id, user_id, content, created_at, updated_at
		FROM notes
		WHERE task_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC`,
		taskID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.TaskID, &n.UserID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func taskSubtasks(userID string, taskID int) ([]models.Subtask, error) {
	rows, err := config.DB.Query(`
		SELECT id, task_id, user_id, title, completed_at, created_at, updated_at
		FROM subtasks
		WHERE task_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		taskID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subtasks := []models.Subtask{}
	for rows.Next() {
		var s models.Subtask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.UserID, &s.Title, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}

func taskHistory(userID string, taskID, limit int) ([]models.TaskAIMessage, error) {
	rows, err := config.DB.Query(`
		SELECT id, task_id, user_id, message, from_user, from_ai, created_at, updated_at
		FROM task_ai_messages
		WHERE task_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		taskID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.TaskAIMessage{}
	for rows.Next() {
		var m models.TaskAIMessage
		if err := rows.Scan(&m.ID, &m.TaskID, &m.UserID, &m.Message, &m.FromUser, &m.FromAI, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

// GatherAssistantContext builds the general-assistant context. Visible ids
// are honoured when provided; otherwise it falls back to the 10 most recent
// tasks and all folders.
func GatherAssistantContext(userID string, view ViewContext) (*AssistantContext, error) {
	ctx := &AssistantContext{
		ViewInfo: ViewInfo{
			VisibleTaskIDs:   view.VisibleTaskIDs,
			VisibleFolderIDs: view.VisibleFolderIDs,
			CurrentView:      view.CurrentView,
		},
	}

	var err error
	if len(view.VisibleTaskIDs) > 0 {
		ctx.Tasks, err = tasksByIDs(userID, view.VisibleTaskIDs)
	} else {
		ctx.ViewInfo.UsedFallback = true
		ctx.Tasks, err = recentTasks(userID, 10)
	}
	if err != nil {
		return nil, err
	}

	if len(view.VisibleFolderIDs) > 0 {
		ctx.Folders, err = foldersByIDs(userID, view.VisibleFolderIDs)
	} else {
		ctx.Folders, err = allFolders(userID)
	}
	if err != nil {
		return nil, err
	}

	ctx.Stats, err = gatherStats(userID)
	if err != nil {
		return nil, err
	}

	ctx.RecentActivity, err = recentAssistantMessages(userID, 5)
	if err != nil {
		return nil, err
	}

	return ctx, nil
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()
	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.FolderID, &t.UserID, &t.Title, &t.Description, &t.DueDate,
			&t.IsRepeating, &t.CompletedAt, &t.LastAIMessageID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

const taskColumns = `id, folder_id, user_id, title, description, due_date, is_repeating,
       completed_at, last_ai_message_id, created_at, updated_at`

func tasksByIDs(userID string, ids []int) ([]models.Task, error) {
	rows, err := config.DB.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 AND id = ANY($2) AND deleted_at IS NULL ORDER BY created_at DESC",
		userID, pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func recentTasks(userID string, limit int) ([]models.Task, error) {
	rows, err := config.DB.Query(
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 AND deleted_at IS NULL ORDER BY updated_at DESC LIMIT $2",
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func foldersByIDs(userID string, ids []int) ([]models.Folder, error) {
	rows, err := config.DB.Query(
		"SELECT id, user_id, name, created_at, updated_at FROM folders WHERE user_id = $1 AND id = ANY($2) AND deleted_at IS NULL ORDER BY name",
		userID, pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	return scanFolders(rows)
}

func allFolders(userID string) ([]models.Folder, error) {
	rows, err := config.DB.Query(
		"SELECT id, user_id, name, created_at, updated_at FROM folders WHERE user_id = $1 AND deleted_at IS NULL ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, err
	}
	return scanFolders(rows)
}

func scanFolders(rows *sql.Rows) ([]models.Folder, error) {
	defer rows.Close()
	folders := []models.Folder{}
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func gatherStats(userID string) (UserStats, error) {
	var s UserStats
	err := config.DB.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE completed_at IS NOT NULL),
		       COUNT(*) FILTER (WHERE completed_at IS NULL)
		FROM tasks WHERE user_id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&s.TotalTasks, &s.CompletedTasks, &s.PendingTasks)
	if err != nil {
		return s, err
	}
	err = config.DB.QueryRow(
		"SELECT COUNT(*) FROM folders WHERE user_id = $1 AND deleted_at IS NULL",
		userID,
	).Scan(&s.TotalFolders)
	return s, err
}

func recentAssistantMessages(userID string, limit int) ([]models.AssistantMessage, error) {
	rows, err := config.DB.Query(`
		SELECT id, user_id, message, from_user, from_ai, created_at, updated_at
		FROM assistant_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.AssistantMessage{}
	for rows.Next() {
		var m models.AssistantMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.FromUser, &m.FromAI, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SearchUserContext retrieves the rows most relevant to a question across
// tasks, notes and assistant messages, using ILIKE term matching.
func SearchUserContext(userID, query string, limit int) ([]RetrievedItem, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	items := []RetrievedItem{}

	// ILIKE catches substring matches; the tsvector clause catches word-form
	// matches the pattern misses ("meetings" finding "meeting").
	rows, err := config.DB.Query(`
		SELECT title, COALESCE(description, '')
		FROM tasks
		WHERE user_id = $1 AND deleted_at IS NULL
		  AND (title ILIKE $2 OR description ILIKE $2
		       OR to_tsvector('english', title || ' ' || COALESCE(description, ''))
		          @@ plainto_tsquery('english', $3))
		ORDER BY created_at DESC
		LIMIT $4`,
		userID, pattern, strings.TrimSpace(query), limit,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var title, desc string
		if err := rows.Scan(&title, &desc); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, RetrievedItem{Source: "task", Title: title, Content: desc})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = config.DB.Query(`
		SELECT content
		FROM notes
		WHERE user_id = $1 AND deleted_at IS NULL AND content ILIKE $2
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, RetrievedItem{Source: "note", Content: content})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = config.DB.Query(`
		SELECT message
		FROM assistant_messages
		WHERE user_id = $1 AND message ILIKE $2
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, pattern, limit,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var message string
		if err := rows.Scan(&message); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, RetrievedItem{Source: "message", Content: message})
	}
	rows.Close()
	return items, rows.Err()
}

func formatRetrievedContext(items []RetrievedItem) string {
	if len(items) == 0 {
		return "No relevant tasks, notes, or messages found."
	}
	var b strings.Builder
	for _, item := range items {
		switch item.Source {
		case "task":
			fmt.Fprintf(&b, "- Task: %s", item.Title)
			if item.Content != "" {
				fmt.Fprintf(&b, " (%s)", item.Content)
			}
			b.WriteString("\n")
		case "note":
			fmt.Fprintf(&b, "- Note: %s\n", item.Content)
		default:
			fmt.Fprintf(&b, "- Previous message: %s\n", item.Content)
		}
	}
	return b.String()
}

func formatTaskContext(ctx *TaskContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TASK: %s\n", ctx.Task.Title)
	if ctx.Task.Description != nil && *ctx.Task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", *ctx.Task.Description)
	}
	if ctx.Task.DueDate != nil && *ctx.Task.DueDate != "" {
		fmt.Fprintf(&b, "Due: %s\n", *ctx.Task.DueDate)
	}
	if ctx.Folder != nil {
		fmt.Fprintf(&b, "Folder: %s\n", ctx.Folder.Name)
	}

	status := "pending"
	if ctx.Metadata.IsCompleted {
		status = "completed"
	} else if ctx.Metadata.IsOverdue {
		status = "overdue"
	}
	fmt.Fprintf(&b, "Status: %s\n", status)

	if len(ctx.Subtasks) > 0 {
		fmt.Fprintf(&b, "\nSUBTASKS (%d/%d completed):\n", ctx.Metadata.CompletedSubtasks, ctx.Metadata.SubtaskCount)
		for _, s := range ctx.Subtasks {
			mark := "[ ]"
			if s.CompletedAt != nil {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "%s %s\n", mark, s.Title)
		}
	}

	if len(ctx.Notes) > 0 {
		b.WriteString("\nNOTES:\n")
		for _, n := range ctx.Notes {
			fmt.Fprintf(&b, "- %s\n", n.Content)
		}
	}

	if len(ctx.History) > 0 {
		b.WriteString("\nRECENT CONVERSATION:\n")
		// History arrives newest-first; replay oldest-first.
		for i := len(ctx.History) - 1; i >= 0; i-- {
			m := ctx.History[i]
			author := "AI"
			if m.FromUser {
				author = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", author, m.Message)
		}
	}

	return b.String()
}

func formatAssistantContext(ctx *AssistantContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "USER STATS: %d tasks total, %d completed, %d pending, %d folders\n",
		ctx.Stats.TotalTasks, ctx.Stats.CompletedTasks, ctx.Stats.PendingTasks, ctx.Stats.TotalFolders)

	if ctx.ViewInfo.CurrentView != "" {
		fmt.Fprintf(&b, "Current view: %s\n", ctx.ViewInfo.CurrentView)
	}

	if len(ctx.Tasks) > 0 {
		label := "VISIBLE TASKS"
		if ctx.ViewInfo.UsedFallback {
			label = "RECENT TASKS"
		}
		fmt.Fprintf(&b, "\n%s:\n", label)
		for _, t := range ctx.Tasks {
			mark := "[ ]"
			if t.CompletedAt != nil {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "%s %s", mark, t.Title)
			if t.DueDate != nil && *t.DueDate != "" {
				fmt.Fprintf(&b, " (due: %s)", *t.DueDate)
			}
			b.WriteString("\n")
		}
	}

	if len(ctx.Folders) > 0 {
		b.WriteString("\nFOLDERS:\n")
		for _, f := range ctx.Folders {
			fmt.Fprintf(&b, "- %s\n", f.Name)
		}
	}

	if len(ctx.RecentActivity) > 0 {
		b.WriteString("\nRECENT CONVERSATION:\n")
		for i := len(ctx.RecentActivity) - 1; i >= 0; i-- {
			m := ctx.RecentActivity[i]
			author := "AI"
			if m.FromUser {
				author = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", author, m.Message)
		}
	}

	return b.String()
}

// generateProductivityInsights summarizes 30-day completion behaviour for
// the plaid enhancement block.
func generateProductivityInsights(userID string) (map[string]interface{}, error) {
	var completed30d, created30d int
	err := config.DB.QueryRow(`
		SELECT COUNT(*) FILTER (WHERE completed_at > NOW() - INTERVAL '30 days'),
		       COUNT(*) FILTER (WHERE created_at > NOW() - INTERVAL '30 days')
		FROM tasks WHERE user_id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&completed30d, &created30d)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if created30d > 0 {
		rate = float64(completed30d) / float64(created30d)
	}

	return map[string]interface{}{
		"tasks_completed_30d": completed30d,
		"tasks_created_30d":   created30d,
		"completion_rate":     rate,
	}, nil
}

// analyzeUserPatterns reports which hours of the day the user completes
// tasks in, for the plaid enhancement block.
func analyzeUserPatterns(userID string) (map[string]interface{}, error) {
	rows, err := config.DB.Query(`
		SELECT EXTRACT(HOUR FROM completed_at)::int AS hour, COUNT(*)
		FROM tasks
		WHERE user_id = $1 AND completed_at IS NOT NULL AND deleted_at IS NULL
		GROUP BY hour
		ORDER BY COUNT(*) DESC
		LIMIT 3`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	peakHours := []int{}
	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		peakHours = append(peakHours, hour)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"peak_completion_hours": peakHours,
	}, nil
}
