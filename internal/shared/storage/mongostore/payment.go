package mongostore

import (
	"context"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// PaymentStore
// ============================================================================

func (s *Store) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return insertOne(ctx, s.col(ColPayments), payment)
}

func (s *Store) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return findOne[model.Payment](ctx, s.col(ColPayments), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListPayments(ctx context.Context, status model.PaymentStatus) ([]*model.Payment, error) {
	filter := bson.D{}
	if status != "" {
		filter = bson.D{{Key: "status", Value: status}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Payment](ctx, s.col(ColPayments), filter, opts)
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID string) ([]*model.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.Payment](ctx, s.col(ColPayments), bson.D{{Key: "user_id", Value: userID}}, opts)
}

// TransitionPayment 条件更新实现原子状态机转换
// 过滤条件带上 status=pending，终态记录不会被匹配，两个管理员
// 并发审核同一笔支付时只有一个能成功
func (s *Store) TransitionPayment(ctx context.Context, id string, to model.PaymentStatus,
	reviewedBy, remarks string, reviewedAt time.Time) error {

	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "status", Value: model.PaymentStatusPending},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: to},
		{Key: "remarks", Value: remarks},
		{Key: "reviewed_by", Value: reviewedBy},
		{Key: "reviewed_at", Value: reviewedAt},
	}}}

	res, err := s.col(ColPayments).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		// 区分记录不存在与已处于终态
		existing, err := s.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}
