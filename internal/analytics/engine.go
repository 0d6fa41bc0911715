// internal/analytics/engine.go
// Pure computation over the analytics record collections. Everything in
// this file is side-effect free so recomputes stay cheap and testable.

package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const allTimeRange = "all_time"

// buildReport derives every dashboard output from the raw collections.
func buildReport(events []NotificationEvent, records []DeliveryRecord, engagements []EngagementRecord, now time.Time) Report {
	delivery := computeDeliveryStats(records)
	engagement := computeEngagement(events, records, engagements)

	return Report{
		Summary:    buildSummary(delivery, engagement, engagements, now),
		Delivery:   delivery,
		Engagement: engagement,
		Insights:   buildInsights(delivery, engagement),
	}
}

func computeDeliveryStats(records []DeliveryRecord) DeliveryStatistics {
	stats := DeliveryStatistics{TotalSent: len(records)}

	var latencies []float64
	var deliveredLatencySum float64
	deliveredWithLatency := 0

	for _, r := range records {
		switch r.Status {
		case DeliveryStatusDelivered:
			stats.TotalDelivered++
			if r.DeliveryLatency != nil {
				deliveredLatencySum += *r.DeliveryLatency
				deliveredWithLatency++
			}
		case DeliveryStatusFailed:
			stats.TotalFailed++
		}
		if r.DeliveryLatency != nil {
			latencies = append(latencies, *r.DeliveryLatency)
		}
	}

	// Pending is derived, not stored, and deliberately not clamped
	stats.TotalPending = stats.TotalSent - stats.TotalDelivered - stats.TotalFailed
	stats.DeliveryRate = ratio(stats.TotalDelivered, stats.TotalSent)
	stats.FailureRate = ratio(stats.TotalFailed, stats.TotalSent)
	if deliveredWithLatency > 0 {
		stats.AvgDeliveryLatency = deliveredLatencySum / float64(deliveredWithLatency)
	}
	stats.P95DeliveryLatency = percentile(latencies, 0.95)

	return stats
}

func computeEngagement(events []NotificationEvent, records []DeliveryRecord, engagements []EngagementRecord) EngagementMetrics {
	metrics := EngagementMetrics{
		ByCategory: make(map[string]CategoryEngagement),
		ByHour:     make(map[int]TimeOfDayEngagement),
	}

	delivered := 0
	for _, r := range records {
		if r.Status == DeliveryStatusDelivered {
			delivered++
		}
	}

	var opened, dismissed, actioned int
	var openSum, dismissSum float64
	var openWithLatency, dismissWithLatency int
	for _, e := range engagements {
		switch e.Kind {
		case EngagementOpened:
			opened++
			if e.TimeToOpen != nil {
				openSum += *e.TimeToOpen
				openWithLatency++
			}
		case EngagementDismissed:
			dismissed++
			if e.TimeToDismiss != nil {
				dismissSum += *e.TimeToDismiss
				dismissWithLatency++
			}
		case EngagementActionTaken:
			actioned++
		}
	}

	metrics.OpenRate = ratio(opened, delivered)
	metrics.DismissalRate = ratio(dismissed, delivered)
	metrics.ActionRate = ratio(actioned, delivered)
	if openWithLatency > 0 {
		metrics.AvgTimeToOpen = openSum / float64(openWithLatency)
	}
	if dismissWithLatency > 0 {
		metrics.AvgTimeToDismiss = dismissSum / float64(dismissWithLatency)
	}

	byCategory := make(map[string]*engagementCounts)
	byHour := make(map[int]*engagementCounts)
	for _, ev := range events {
		category := ev.Category
		if category == "" {
			category = "unknown"
		}
		if byCategory[category] == nil {
			byCategory[category] = &engagementCounts{}
		}
		byCategory[category].add(ev.Type)

		hour := ev.Timestamp.Hour()
		if byHour[hour] == nil {
			byHour[hour] = &engagementCounts{}
		}
		byHour[hour].add(ev.Type)
	}

	for category, counts := range byCategory {
		metrics.ByCategory[category] = CategoryEngagement{
			Category:      category,
			Sent:          counts.sent,
			Delivered:     counts.delivered,
			Opened:        counts.opened,
			Dismissed:     counts.dismissed,
			ActionsTaken:  counts.actioned,
			DeliveryRate:  ratio(counts.delivered, counts.sent),
			OpenRate:      ratio(counts.opened, counts.delivered),
			DismissalRate: ratio(counts.dismissed, counts.delivered),
			ActionRate:    ratio(counts.actioned, counts.delivered),
		}
	}
	for hour, counts := range byHour {
		metrics.ByHour[hour] = TimeOfDayEngagement{
			Hour:          hour,
			Sent:          counts.sent,
			Delivered:     counts.delivered,
			Opened:        counts.opened,
			Dismissed:     counts.dismissed,
			ActionsTaken:  counts.actioned,
			DeliveryRate:  ratio(counts.delivered, counts.sent),
			OpenRate:      ratio(counts.opened, counts.delivered),
			DismissalRate: ratio(counts.dismissed, counts.delivered),
			ActionRate:    ratio(counts.actioned, counts.delivered),
		}
	}

	return metrics
}

type engagementCounts struct {
	sent, delivered, opened, dismissed, actioned int
}

func (c *engagementCounts) add(t EventType) {
	switch t {
	case EventSent:
		c.sent++
	case EventDelivered:
		c.delivered++
	case EventOpened:
		c.opened++
	case EventDismissed:
		c.dismissed++
	case EventActionTaken:
		c.actioned++
	}
}

func buildInsights(delivery DeliveryStatistics, engagement EngagementMetrics) []PerformanceInsight {
	var insights []PerformanceInsight

	// Threshold insights only fire once there is data to judge
	if delivery.TotalSent > 0 && delivery.DeliveryRate < 0.80 {
		insights = append(insights, PerformanceInsight{
			Type:     InsightLowDeliveryRate,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Delivery rate is %.1f%%, below the 80%% target", delivery.DeliveryRate*100),
			Value:    delivery.DeliveryRate,
		})
	}
	if delivery.AvgDeliveryLatency > 30 {
		insights = append(insights, PerformanceInsight{
			Type:     InsightSlowDelivery,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Average delivery latency is %.1fs", delivery.AvgDeliveryLatency),
			Value:    delivery.AvgDeliveryLatency,
		})
	}
	if delivery.TotalDelivered > 0 && engagement.OpenRate < 0.10 {
		insights = append(insights, PerformanceInsight{
			Type:     InsightLowEngagement,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Open rate is %.1f%%, most notifications go unread", engagement.OpenRate*100),
			Value:    engagement.OpenRate,
		})
	}
	if engagement.DismissalRate > 0.70 {
		insights = append(insights, PerformanceInsight{
			Type:     InsightHighDismissal,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Dismissal rate is %.1f%%, content may not match user interests", engagement.DismissalRate*100),
			Value:    engagement.DismissalRate,
		})
	}
	if best, ok := bestCategory(engagement.ByCategory); ok {
		insights = append(insights, PerformanceInsight{
			Type:     InsightBestCategory,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%q is the best performing category with a %.1f%% open rate", best.Category, best.OpenRate*100),
			Value:    best.OpenRate,
		})
	}

	return insights
}

// bestCategory picks the category with the highest open rate. Ties go to
// the lexicographically first name so repeated recomputes agree.
func bestCategory(byCategory map[string]CategoryEngagement) (CategoryEngagement, bool) {
	if len(byCategory) == 0 {
		return CategoryEngagement{}, false
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	best := byCategory[names[0]]
	for _, name := range names[1:] {
		if byCategory[name].OpenRate > best.OpenRate {
			best = byCategory[name]
		}
	}
	return best, true
}

func buildSummary(delivery DeliveryStatistics, engagement EngagementMetrics, engagements []EngagementRecord, now time.Time) NotificationAnalytics {
	opened := 0
	for _, e := range engagements {
		if e.Kind == EngagementOpened {
			opened++
		}
	}

	return NotificationAnalytics{
		TotalSent:          delivery.TotalSent,
		TotalDelivered:     delivery.TotalDelivered,
		TotalOpened:        opened,
		TotalFailed:        delivery.TotalFailed,
		AvgDeliveryLatency: delivery.AvgDeliveryLatency,
		OpenRate:           engagement.OpenRate,
		ComputedAt:         now,
		TimeRange:          allTimeRange,
	}
}

// percentile returns the nearest-rank percentile: the element at index
// floor(len*p) of the ascending sort, clamped to the last element.
// Returns 0 for an empty input.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
