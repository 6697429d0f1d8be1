package service

import (
	"sort"
	"time"
)

// frequencyBucketLimit caps the activity series at the most recent buckets.
const frequencyBucketLimit = 30

// computeStats derives the statistics block from the merged resource lists.
func computeStats(resources map[SubResourceKind][]ResourceItem) SyncStats {
	stats := SyncStats{
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
		ByKind:     make(map[SubResourceKind]int),
	}

	var all []ResourceItem
	for kind, items := range resources {
		stats.ByKind[kind] = len(items)
		all = append(all, items...)
	}
	stats.Total = len(all)

	for _, item := range all {
		if item.Status != "" {
			stats.ByStatus[item.Status]++
		}
		if item.Category != "" {
			stats.ByCategory[item.Category]++
		}
	}

	stats.Frequency = frequencySeries(all)
	return stats
}

// frequencySeries buckets items by UTC calendar day, sorted ascending by
// date and truncated to the most recent buckets. Bucketing is additive, so
// concurrent merge order cannot change the series.
func frequencySeries(items []ResourceItem) []FrequencyBucket {
	counts := make(map[string]int)
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			continue
		}
		counts[item.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	if len(counts) == 0 {
		return nil
	}

	buckets := make([]FrequencyBucket, 0, len(counts))
	for date, count := range counts {
		buckets = append(buckets, FrequencyBucket{Date: date, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })

	if len(buckets) > frequencyBucketLimit {
		buckets = buckets[len(buckets)-frequencyBucketLimit:]
	}
	return buckets
}
