package session

import (
	"strings"

	"github.com/mileusna/useragent"
)

// Description is a session record enriched for display: parsed client
// details plus a flag marking the caller's current session.
type Description struct {
	Record
	Browser   string `json:"browser,omitempty"`
	OS        string `json:"os,omitempty"`
	Device    string `json:"device,omitempty"`
	IsCurrent bool   `json:"is_current"`
}

// Describe parses the record's user agent and marks whether it is the
// caller's current session.
func Describe(rec Record, currentID string) Description {
	d := Description{Record: rec, IsCurrent: rec.ID == currentID}
	raw := strings.TrimSpace(rec.UserAgent)
	if raw == "" {
		return d
	}
	ua := useragent.Parse(raw)
	if ua.Name != "" {
		d.Browser = ua.Name
		if ua.Version != "" {
			d.Browser += " " + ua.Version
		}
	}
	if ua.OS != "" {
		d.OS = ua.OS
		if ua.OSVersion != "" {
			d.OS += " " + ua.OSVersion
		}
	}
	switch {
	case ua.Device != "":
		d.Device = ua.Device
	case ua.Mobile:
		d.Device = "mobile"
	case ua.Tablet:
		d.Device = "tablet"
	case ua.Desktop:
		d.Device = "desktop"
	}
	return d
}

// DescribeAll enriches a list of records.
func DescribeAll(recs []Record, currentID string) []Description {
	out := make([]Description, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Describe(rec, currentID))
	}
	return out
}
