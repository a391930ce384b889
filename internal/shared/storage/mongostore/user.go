package mongostore

import (
	"context"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return insertOne(ctx, s.col(ColUsers), user)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "phone", Value: phone}})
}

func (s *Store) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "google_id", Value: googleID}})
}

func (s *Store) GetUserByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "reset_token_hash", Value: tokenHash}})
}

func (s *Store) GetUserByVerifyToken(ctx context.Context, tokenHash string) (*model.User, error) {
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "verify_token_hash", Value: tokenHash}})
}

// UpdateUser 乐观锁整体替换：仅当文档版本与 user.Version 一致时写入
// 成功后 user.Version 自增，保证调用方可以继续写入
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	filter := bson.D{
		{Key: "_id", Value: user.ID},
		{Key: "version", Value: user.Version},
	}
	next := *user
	next.Version = user.Version + 1

	res, err := s.col(ColUsers).ReplaceOne(ctx, filter, &next)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		// 版本不匹配或用户已删除，均视为写冲突
		return storage.ErrConflict
	}
	user.Version = next.Version
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColUsers), id)
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.User](ctx, s.col(ColUsers), bson.D{}, opts)
}
