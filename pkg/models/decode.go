package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Expiry layouts carrying an explicit zone. Fractional seconds are accepted
// after the seconds field by time.Parse even when the layout omits them.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

// Expiry layouts without a zone, read as local wall clock
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseExpire reads an ISO-8601 lease expiry. Date-time forms without an
// offset are local time; a bare date is midnight UTC. The zero time and
// false are returned for anything else.
func ParseExpire(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// UnmarshalJSON decodes a lease, leaving Expire zero when it is null or
// not a recognizable instant
func (l *Lease) UnmarshalJSON(b []byte) error {
	var aux struct {
		FixedAddress string  `json:"FixedAddress"`
		Expire       *string `json:"Expire"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	l.FixedAddress = aux.FixedAddress
	l.Expire = time.Time{}
	if aux.Expire != nil {
		l.Expire, _ = ParseExpire(*aux.Expire)
	}
	return nil
}

// UnmarshalJSON decodes a record. An ID that is not a UUID string decodes
// as uuid.Nil instead of failing the record.
func (d *DeviceRecord) UnmarshalJSON(b []byte) error {
	type plain DeviceRecord
	aux := struct {
		*plain
		ID json.RawMessage `json:"ID"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	d.ID = uuid.Nil
	var id string
	if err := json.Unmarshal(aux.ID, &id); err == nil {
		if parsed, err := uuid.Parse(id); err == nil {
			d.ID = parsed
		}
	}
	return nil
}
