package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/podcraft/backend/internal/account"
)

// StatsStore supplies the operator dashboard aggregates from the database.
type StatsStore struct {
	db *gorm.DB
}

// NewStatsStore returns a StatsStore backed by gorm.DB.
func NewStatsStore(db *gorm.DB) *StatsStore {
	return &StatsStore{db: db}
}

func (store *StatsStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&User{}).Count(&count).Error
	return count, err
}

func (store *StatsStore) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&User{}).Where("is_admin = ?", true).Count(&count).Error
	return count, err
}

func (store *StatsStore) CountProjects(ctx context.Context) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&Project{}).Count(&count).Error
	return count, err
}

func (store *StatsStore) SumAccountBalances(ctx context.Context) (int64, error) {
	var sum struct {
		Total int64
	}
	err := store.db.WithContext(ctx).
		Model(&CreditAccount{}).
		Select("coalesce(sum(balance_credits),0) as total").
		Scan(&sum).Error
	return sum.Total, err
}

func (store *StatsStore) RecentUsers(ctx context.Context, limit int) ([]account.User, error) {
	var rows []User
	err := store.db.WithContext(ctx).
		Order("created_at DESC, user_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	recent := make([]account.User, 0, len(rows))
	for _, row := range rows {
		recent = append(recent, mapUser(row))
	}
	return recent, nil
}
