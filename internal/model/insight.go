package model

import "encoding/json"

// InsightType tags a productivity insight generated by the service.
type InsightType string

const (
	InsightProductiveTime      InsightType = "productive_time"
	InsightCompletionRate      InsightType = "completion_rate"
	InsightCategoryPerformance InsightType = "category_performance"
	InsightTaskRecommendations InsightType = "task_recommendations"
)

// Insight is a server-generated observation about the user's tasks.
// The client displays it and never mutates it.
type Insight struct {
	ID          int64       `json:"id"`
	UserID      string      `json:"user_id,omitempty"`
	Type        InsightType `json:"insight_type"`
	Data        InsightData `json:"insight_data"`
	GeneratedAt *Time       `json:"generated_at,omitempty"`
}

// InsightData keeps the human-readable message plus the raw payload so
// type-specific fields survive a round trip untouched.
type InsightData struct {
	Message string
	Raw     json.RawMessage
}

func (d *InsightData) UnmarshalJSON(data []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	d.Message = payload.Message
	d.Raw = append(d.Raw[:0], data...)
	return nil
}

func (d InsightData) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	return json.Marshal(map[string]string{"message": d.Message})
}
