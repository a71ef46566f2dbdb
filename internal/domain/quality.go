package domain

import "strings"

// Quality mirrors the vendor-reported connection quality.
type Quality string

const (
	QualityUnknown Quality = "UNKNOWN"
	QualityGood    Quality = "GOOD"
	QualityBad     Quality = "BAD"
)

// ParseQuality maps a vendor value onto a known Quality; anything else is unknown.
func ParseQuality(raw string) Quality {
	switch Quality(strings.ToUpper(strings.TrimSpace(raw))) {
	case QualityGood:
		return QualityGood
	case QualityBad:
		return QualityBad
	default:
		return QualityUnknown
	}
}
