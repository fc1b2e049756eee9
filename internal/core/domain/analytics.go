package domain

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func ParsePeriod(value string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "week", "":
		return PeriodWeek, nil
	case "month":
		return PeriodMonth, nil
	case "year":
		return PeriodYear, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", ErrInvalidInput, value)
	}
}

// Start returns the lower bound of the period's time window.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// Days is the fixed day-count divisor for the daily average. Month and year
// use nominal lengths (30, 365), not the elapsed calendar span.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

type Metrics struct {
	TotalScans        int     `json:"total_scans"`
	HealthyScans      int     `json:"healthy_scans"`
	UnhealthyScans    int     `json:"unhealthy_scans"`
	DailyAverageScans float64 `json:"daily_average_scans"`
}

// ChartBucket aggregates one calendar day of scans for the bar chart.
type ChartBucket struct {
	Date      string `json:"date"`
	Healthy   int    `json:"healthy"`
	Unhealthy int    `json:"unhealthy"`
}

type PieSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

const (
	ColorHealthy   = "#00C49F"
	ColorUnhealthy = "#FF8042"
)
