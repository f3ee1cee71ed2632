package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// BalanceUpdate is the payload pushed to balance subscribers.
type BalanceUpdate struct {
	UserID    string    `json:"userId"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BalancePublisher pushes balance changes to whoever is listening.
type BalancePublisher interface {
	PublishBalance(ctx context.Context, userID string, balance int64)
}

// BalanceNotifier publishes balance changes on a Redis channel per user.
// With a nil client it does nothing.
type BalanceNotifier struct {
	redis  *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewBalanceNotifier(redis *redis.Client, logger *zap.Logger) *BalanceNotifier {
	return &BalanceNotifier{
		redis:  redis,
		logger: logger,
		now:    time.Now,
	}
}

// BalanceChannel is the pub/sub channel for userID.
func BalanceChannel(userID string) string {
	return "balance:" + userID
}

func (n *BalanceNotifier) PublishBalance(ctx context.Context, userID string, balance int64) {
	if n == nil || n.redis == nil {
		return
	}

	payload, err := json.Marshal(BalanceUpdate{
		UserID:    userID,
		Balance:   balance,
		UpdatedAt: n.now().UTC(),
	})
	if err != nil {
		return
	}

	if err := n.redis.Publish(ctx, BalanceChannel(userID), payload).Err(); err != nil {
		n.logger.Warn("Failed to publish balance update", zap.String("user", userID), zap.Error(err))
	}
}
