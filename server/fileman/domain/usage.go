package domain

import "time"

// DefaultQuotaBytes is the per-owner storage allowance (2 GiB).
const DefaultQuotaBytes int64 = 2 * 1024 * 1024 * 1024

type CategoryUsage struct {
	Size       int64     `json:"size"`
	LatestDate time.Time `json:"latest_date"`
}

// UsageSummary is derived on demand and never stored.
type UsageSummary struct {
	Categories map[Category]CategoryUsage `json:"categories"`
	Used       int64                      `json:"used"`
	All        int64                      `json:"all"`
}

// SummarizeUsage folds the records owned by ownerID into per-category
// buckets. Records owned by anyone else are skipped, so files shared with the
// owner never count. The fold is order independent: sums commute and
// LatestDate keeps the maximum instant.
func SummarizeUsage(ownerID string, records []FileRecord, filter []Category, quota int64) UsageSummary {
	if len(filter) == 0 {
		filter = Categories
	}
	summary := UsageSummary{
		Categories: make(map[Category]CategoryUsage, len(filter)),
		All:        quota,
	}
	for _, c := range filter {
		summary.Categories[c] = CategoryUsage{}
	}

	for _, r := range records {
		if r.OwnerID != ownerID {
			continue
		}
		bucket, ok := summary.Categories[r.Category]
		if !ok {
			continue
		}
		bucket.Size += r.Size
		if r.UpdatedAt.After(bucket.LatestDate) {
			bucket.LatestDate = r.UpdatedAt
		}
		summary.Categories[r.Category] = bucket
		summary.Used += r.Size
	}
	return summary
}
