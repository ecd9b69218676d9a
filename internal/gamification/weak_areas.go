package gamification

import (
	"context"
	"sort"
	"time"

	"github.com/example/lughat/internal/database"
	"github.com/example/lughat/pkg/models"
	"github.com/jmoiron/sqlx"
)

// BuildWeakAreas turns per-category weak counts into the ranked snapshot:
// top limit by count, ties broken by category name, urgency = min(100, count*20).
func BuildWeakAreas(userID int64, counts []database.CategoryCount, limit int) []models.WeakArea {
	sorted := make([]database.CategoryCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Category < sorted[j].Category
	})

	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	areas := make([]models.WeakArea, 0, len(sorted))
	for _, c := range sorted {
		urgency := c.Count * 20
		if urgency > 100 {
			urgency = 100
		}
		areas = append(areas, models.WeakArea{
			UserID:   userID,
			Category: c.Category,
			Count:    c.Count,
			Urgency:  urgency,
		})
	}
	return areas
}

// RecomputeWeakAreas rebuilds the user's snapshot from item strengths and
// replaces the stored one.
func RecomputeWeakAreas(ctx context.Context, q sqlx.ExtContext, policy Policy, userID int64, now time.Time) ([]models.WeakArea, error) {
	counts, err := database.NewItemStrengthRepository(q).WeakCountsByCategory(ctx, userID, policy.WeakThreshold)
	if err != nil {
		return nil, err
	}
	areas := BuildWeakAreas(userID, counts, policy.WeakAreaLimit)
	if err := database.NewWeakAreaRepository(q).Replace(ctx, userID, areas, now); err != nil {
		return nil, err
	}
	return areas, nil
}
