package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Classification string

const (
	ClassificationHealthy   Classification = "Healthy"
	ClassificationUnhealthy Classification = "Unhealthy"
)

func ParseClassification(value string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "healthy":
		return ClassificationHealthy, nil
	case "unhealthy":
		return ClassificationUnhealthy, nil
	default:
		return "", fmt.Errorf("%w: unknown classification %q", ErrInvalidInput, value)
	}
}

// ClassificationRecord is one scan result produced by the external
// classifier. Location is free text and may still carry the raw
// "Latitude: X, Longitude: Y" form until reverse-geocoded for display.
type ClassificationRecord struct {
	ID             string         `json:"id"`
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `json:"created_at"`
	ImageURL       string         `json:"image_url"`
	Location       string         `json:"location"`
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

var coordinatesPattern = regexp.MustCompile(`Latitude:\s*(-?\d+(?:\.\d+)?),\s*Longitude:\s*(-?\d+(?:\.\d+)?)`)

// ParseCoordinates extracts the embedded lat/lon pattern from a location
// string. ok is false when the text holds a resolved place name (or
// anything else) instead of raw coordinates.
func ParseCoordinates(location string) (Coordinates, bool) {
	match := coordinatesPattern.FindStringSubmatch(location)
	if match == nil {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Coordinates{}, false
	}
	lon, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: lat, Longitude: lon}, true
}

// FormatTimestamp renders a record timestamp the way the dashboard table
// shows it. Search terms are matched against this exact form, so the layout
// is part of the filter contract.
func FormatTimestamp(t time.Time) string {
	return t.Format("1/2/2006, 3:04:05 PM")
}

// FormatDate is the calendar-day label used as the chart bucket key.
func FormatDate(t time.Time) string {
	return t.Format("1/2/2006")
}
