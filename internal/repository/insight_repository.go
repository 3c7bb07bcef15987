package repository

import (
	"context"
	"net/url"

	"taskpilot/internal/model"
)

// InsightRepository reads server-generated productivity insights.
// Insights are regenerated remotely and never mutated from here.
type InsightRepository struct {
	client *Client
}

func NewInsightRepository(client *Client) *InsightRepository {
	return &InsightRepository{client: client}
}

// List fetches the latest insights for the user.
func (r *InsightRepository) List(ctx context.Context, userID string) ([]model.Insight, error) {
	var insights []model.Insight
	query := url.Values{"user_id": {userID}}
	if err := r.client.getJSON(ctx, "/api/insights", query, &insights); err != nil {
		return nil, err
	}
	return insights, nil
}
