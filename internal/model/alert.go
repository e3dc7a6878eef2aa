package model

// AlertLevel is the severity of an Alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertHigh     AlertLevel = "high"
	AlertCritical AlertLevel = "critical"
	AlertError    AlertLevel = "error"
)

// Rank orders alert levels from least (0) to most severe.
func (l AlertLevel) Rank() int {
	switch l {
	case AlertInfo:
		return 0
	case AlertWarning:
		return 1
	case AlertHigh:
		return 2
	case AlertCritical:
		return 3
	case AlertError:
		return 4
	}
	return -1
}

// Alert is a generated finding. Alerts are appended, never edited.
type Alert struct {
	Level      AlertLevel         `json:"level"`
	Message    string             `json:"message"`
	PageNumber int                `json:"page_number,omitempty"`
	DocType    DocumentType       `json:"doc_type,omitempty"`
	Term       *TermMatch         `json:"term,omitempty"`
	Quantity   *ExtractedQuantity `json:"quantity,omitempty"`
	Details    map[string]any     `json:"details,omitempty"`
}

// CountAlerts returns how many alerts have exactly the given level.
func CountAlerts(alerts []Alert, level AlertLevel) int {
	n := 0
	for _, a := range alerts {
		if a.Level == level {
			n++
		}
	}
	return n
}
