package mongostore

import (
	"context"

	"course-admin/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// SuggestionStore
// ============================================================================

func (s *Store) CreateSuggestion(ctx context.Context, sg *model.Suggestion) error {
	return insertOne(ctx, s.col(ColSuggestions), sg)
}

func (s *Store) GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	return findOne[model.Suggestion](ctx, s.col(ColSuggestions), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) UpdateSuggestion(ctx context.Context, sg *model.Suggestion) error {
	return replaceByID(ctx, s.col(ColSuggestions), sg.ID, sg)
}

func (s *Store) DeleteSuggestion(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColSuggestions), id)
}

func (s *Store) ListSuggestions(ctx context.Context) ([]*model.Suggestion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Suggestion](ctx, s.col(ColSuggestions), bson.D{}, opts)
}

func (s *Store) ListSuggestionsByUser(ctx context.Context, userID string) ([]*model.Suggestion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Suggestion](ctx, s.col(ColSuggestions), bson.D{{Key: "user_id", Value: userID}}, opts)
}
