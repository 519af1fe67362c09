package models

import "time"

// JournalEntry records the summary of one series after an applied refresh.
type JournalEntry struct {
	ID            string      `json:"id"`
	Time          time.Time   `json:"time"`
	ViewID        string      `json:"view_id,omitempty"`
	DeviceID      string      `json:"device_id"`
	MeasurementID string      `json:"measurement_id"`
	Period        PeriodLabel `json:"period"`
	Granularity   Granularity `json:"granularity"`
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	Buckets       int         `json:"buckets"`
	Rows          int         `json:"rows"`
	Stats         Stats       `json:"stats"`
	Failed        bool        `json:"failed"`
}
