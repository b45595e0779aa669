package milestone

import (
	"time"

	"onyx-api/internal/config"
	"onyx-api/internal/models"
	"onyx-api/internal/subscription"
	"onyx-api/pkg/logger"

	"go.uber.org/zap"
)

const TypeTasks100Completed = "tasks_100_completed"

const tasks100Threshold = 100

// Notification is the payload returned when a milestone is first crossed
// or when the client asks for the tier-specific upgrade copy.
type Notification struct {
	Type           string   `json:"type"`
	Milestone      string   `json:"milestone"`
	CompletedTasks int      `json:"completed_tasks"`
	AchievedAt     string   `json:"achieved_at"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	CurrentTier    string   `json:"current_tier"`
	SuggestedTier  *string  `json:"suggested_tier"`
	Benefits       []string `json:"benefits"`
	CTAText        string   `json:"cta_text"`
	CTAAction      string   `json:"cta_action"`
}

func strPtr(s string) *string { return &s }

// CheckTaskCompletionMilestone reports the 100-completed-tasks milestone
// the first time it is crossed and nil on every later call. Errors are
// swallowed: milestone checks are bookkeeping, not core correctness.
func CheckTaskCompletionMilestone(userID string) *Notification {
	sub, err := subscription.GetUserSubscription(userID)
	if err != nil {
		logger.ErrorLogger.Error("Error checking task completion milestone", zap.Error(err))
		return nil
	}

	var completed int
	err = config.DB.QueryRow(
		"SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND completed_at IS NOT NULL AND deleted_at IS NULL",
		userID,
	).Scan(&completed)
	if err != nil {
		logger.ErrorLogger.Error("Error counting completed tasks", zap.Error(err))
		return nil
	}

	if completed < tasks100Threshold {
		return nil
	}

	// The conflict-ignore insert is what makes this at-most-once under
	// concurrent requests: only the call that inserts the row notifies.
	recorded, err := markSeen(userID, TypeTasks100Completed)
	if err != nil {
		logger.ErrorLogger.Error("Error recording milestone", zap.Error(err))
		return nil
	}
	if !recorded {
		return nil
	}

	msg := GetUpgradeMessage(sub.Tier, completed)
	return &msg
}

// markSeen inserts the milestone record, reporting whether this call won
// the insert (false means the row already existed).
func markSeen(userID, milestoneType string) (bool, error) {
	res, err := config.DB.Exec(`
		INSERT INTO user_milestones (user_id, milestone_type, achieved_at, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW(), NOW())
		ON CONFLICT (user_id, milestone_type) DO NOTHING`,
		userID, milestoneType,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records a milestone as seen/dismissed for a user. Safe to call
// repeatedly.
func MarkSeen(userID, milestoneType string) error {
	_, err := markSeen(userID, milestoneType)
	return err
}

// GetUpgradeMessage maps a tier to its milestone copy. The top tier gets a
// congratulatory message with no upgrade suggestion.
func GetUpgradeMessage(tier string, completedTasks int) Notification {
	base := Notification{
		Type:           "milestone_achievement",
		Milestone:      TypeTasks100Completed,
		CompletedTasks: completedTasks,
		AchievedAt:     time.Now().UTC().Format(time.RFC3339),
		CurrentTier:    tier,
	}

	switch tier {
	case models.TierFree:
		base.Title = "Amazing! You've completed 100 tasks!"
		base.Message = "You've built quite a productivity history! With 100+ completed tasks, you now have enough data in our system to benefit from our Premium features including unlimited AI assistance and advanced task insights."
		base.SuggestedTier = strPtr(models.TierPremium)
		base.Benefits = []string{
			"Unlimited AI task assistance",
			"Advanced productivity insights from your 100+ tasks",
			"Smart task suggestions based on your patterns",
			"Priority support",
		}
		base.CTAText = "Upgrade to Premium"
		base.CTAAction = "upgrade_to_premium"
	case models.TierPremium:
		base.Title = "100 Tasks Complete - You're a Productivity Pro!"
		base.Message = "With 100+ completed tasks, you've demonstrated serious commitment to productivity! Your task history is now rich enough to benefit from our Plaid tier's AI fine-tuned models and advanced analytics."
		base.SuggestedTier = strPtr(models.TierPlaid)
		base.Benefits = []string{
			"AI fine-tuned specifically for your productivity patterns",
			"Advanced analytics on your 100+ task history",
			"Gmail integration for seamless task management",
			"Expert-level productivity recommendations",
			"Custom productivity insights",
		}
		base.CTAText = "Upgrade to Plaid"
		base.CTAAction = "upgrade_to_plaid"
	case models.TierPlaid:
		base.Title = "Productivity Master - 100 Tasks Complete!"
		base.Message = "Congratulations on completing 100 tasks! You're making the most of our Plaid features. Your productivity journey is impressive!"
		base.SuggestedTier = nil
		base.Benefits = []string{
			"You're already using our most advanced features",
			"Your fine-tuned AI is learning from your 100+ tasks",
			"Continue leveraging Gmail integration",
			"Keep building your productivity empire!",
		}
		base.CTAText = "Keep Going!"
		base.CTAAction = "continue_productivity"
	default:
		base.Title = "100 Tasks Complete!"
		base.Message = "Congratulations on this productivity milestone!"
		base.SuggestedTier = strPtr(models.TierPremium)
		base.Benefits = []string{"Consider upgrading for more features"}
		base.CTAText = "Learn More"
		base.CTAAction = "learn_more"
	}

	return base
}

// GetUserMilestones lists the milestones a user has achieved, newest first.
func GetUserMilestones(userID string) ([]models.UserMilestone, error) {
	rows, err := config.DB.Query(
		"SELECT id, user_id, milestone_type, achieved_at, created_at, updated_at FROM user_milestones WHERE user_id = $1 ORDER BY achieved_at DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := []models.UserMilestone{}
	for rows.Next() {
		var m models.UserMilestone
		if err := rows.Scan(&m.ID, &m.UserID, &m.MilestoneType, &m.AchievedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// CheckAllMilestones runs every milestone check for a user. Only the
// 100-tasks milestone exists today; future thresholds slot in here.
func CheckAllMilestones(userID string) []Notification {
	notifications := []Notification{}
	if n := CheckTaskCompletionMilestone(userID); n != nil {
		notifications = append(notifications, *n)
	}
	return notifications
}

// OnTaskCompleted is the hook the task toggle handler fires after a task
// transitions to completed.
func OnTaskCompleted(userID string) []Notification {
	return CheckAllMilestones(userID)
}
