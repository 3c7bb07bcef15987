package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"taskpilot/internal/model"
)

func TestInsightRepositoryList(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/insights", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "alice" {
			http.Error(w, `{"error": "User ID is required"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `[
			{
				"id": 42,
				"user_id": "alice",
				"insight_type": "productive_time",
				"insight_data": {
					"message": "You're most productive around 9 AM, 2 PM",
					"productive_hours": ["9 AM", "2 PM"]
				},
				"generated_at": "2026-08-29T07:00:00"
			},
			{
				"id": 43,
				"user_id": "alice",
				"insight_type": "focus_forecast",
				"insight_data": {"message": "A type this client has never heard of"}
			}
		]`)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(router)
	defer srv.Close()

	repo := NewInsightRepository(NewClient(srv.URL, 2*time.Second))
	insights, err := repo.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("got %d insights", len(insights))
	}

	first := insights[0]
	if first.Type != model.InsightProductiveTime {
		t.Errorf("type = %q", first.Type)
	}
	if first.Data.Message != "You're most productive around 9 AM, 2 PM" {
		t.Errorf("message = %q", first.Data.Message)
	}
	// Type-specific payload fields survive in Raw.
	if !strings.Contains(string(first.Data.Raw), "productive_hours") {
		t.Errorf("raw payload lost: %s", first.Data.Raw)
	}

	// Unknown types decode fine; presentation mapping handles them later.
	if insights[1].Type != model.InsightType("focus_forecast") {
		t.Errorf("unknown type mangled: %q", insights[1].Type)
	}
}

func TestInsightRepositoryListFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	repo := NewInsightRepository(NewClient(srv.URL, 2*time.Second))
	_, err := repo.List(context.Background(), "alice")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
