package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
	red "saas-billing/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches plan and feature lookups in Redis. Plans are
// immutable from the engine's perspective, so a TTL is the only invalidation
// needed.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan", "hit")
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		if bytes, err := json.Marshal(plan); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:code:%s", code)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan", "hit")
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		if bytes, err := json.Marshal(plan); err == nil {
			_ = d.cache.Set(ctx, key, bytes, d.ttl)
		}
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.inner.ListActive(ctx, tx)
}

func (d *planRepoCacheDecorator) FindFeature(ctx context.Context, tx repository.Tx, planID string, code model.FeatureCode) (*model.PlanFeature, error) {
	return d.inner.FindFeature(ctx, tx, planID, code)
}

func (d *planRepoCacheDecorator) ListFeatures(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanFeature, error) {
	key := fmt.Sprintf("plan:%s:features", planID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		metrics.IncCacheRequest("plan_features", "hit")
		var features []*model.PlanFeature
		if json.Unmarshal([]byte(val), &features) == nil {
			return features, nil
		}
	}

	metrics.IncCacheRequest("plan_features", "miss")
	features, err := d.inner.ListFeatures(ctx, tx, planID)
	if err != nil {
		return nil, err
	}
	if bytes, err := json.Marshal(features); err == nil {
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return features, nil
}
