package models

import "time"

// Subscription tiers
const (
	TierFree    = "free"
	TierPremium = "premium"
	TierPlaid   = "plaid"
)

type AppUser struct {
	ID                    int        `json:"id"`
	UserID                string     `json:"user_id"`
	Email                 string     `json:"email"`
	AuthMethod            string     `json:"auth_method"`
	Subscription          string     `json:"subscription"`
	StripeCustomerID      *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID  *string    `json:"stripe_subscription_id,omitempty"`
	SubscriptionUpdatedAt *time.Time `json:"subscription_updated_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`
}

type Folder struct {
	ID        int        `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Task struct {
	ID              int        `json:"id"`
	FolderID        *int       `json:"folder_id"`
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	DueDate         *string    `json:"due_date"`
	IsRepeating     bool       `json:"is_repeating"`
	CompletedAt     *time.Time `json:"completed_at"`
	LastAIMessageID *int       `json:"last_ai_message_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

type Subtask struct {
	ID          int        `json:"id"`
	TaskID      int        `json:"task_id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type Note struct {
	ID        int        `json:"id"`
	TaskID    *int       `json:"task_id"`
	UserID    string     `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// A single turn in the general assistant conversation. FromUser and FromAI
// describe the author of the row; both false means a system-authored row.
type AssistantMessage struct {
	ID        int       `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	FromUser  bool      `json:"from_user"`
	FromAI    bool      `json:"from_ai"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// A single turn in a task-scoped AI conversation.
type TaskAIMessage struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	FromUser  bool      `json:"from_user"`
	FromAI    bool      `json:"from_ai"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SuggestedTask struct {
	ID                int        `json:"id"`
	UserID            string     `json:"user_id"`
	SuggestionBatchID string     `json:"suggestion_batch_id"`
	Title             string     `json:"title"`
	IsAdded           bool       `json:"is_added"`
	DeclinedAt        *time.Time `json:"declined_at"`
	SuggestedAt       time.Time  `json:"suggested_at"`
}

// One integration record per user (the earlier per-task design is gone).
type Integration struct {
	ID            int        `json:"id"`
	UserID        string     `json:"user_id"`
	Gmail         bool       `json:"gmail"`
	Status        bool       `json:"status"`
	GmailLastSync *time.Time `json:"gmail_last_sync"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type UserMilestone struct {
	ID            int       `json:"id"`
	UserID        string    `json:"user_id"`
	MilestoneType string    `json:"milestone_type"`
	AchievedAt    time.Time `json:"achieved_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
