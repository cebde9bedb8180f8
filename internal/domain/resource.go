package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ResourceType string

const (
	ResourceTypeMeetingRoom   ResourceType = "meeting_room"
	ResourceTypeHotDesk       ResourceType = "hot_desk"
	ResourceTypePhoneBooth    ResourceType = "phone_booth"
	ResourceTypePrivateOffice ResourceType = "private_office"
)

type ResourceStatus string

const (
	ResourceStatusBookable    ResourceStatus = "bookable"
	ResourceStatusMaintenance ResourceStatus = "maintenance"
	ResourceStatusHidden      ResourceStatus = "hidden"
)

// Resource is a bookable coworking asset. The catalog service owns these
// rows; the engine only ever reads them.
type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ID           uuid.UUID      `bun:"id,pk,type:uuid"`
	Name         string         `bun:"name,notnull"`
	Type         ResourceType   `bun:"type,notnull"`
	Status       ResourceStatus `bun:"status,notnull"`
	Capacity     int            `bun:"capacity,notnull"`
	OpenMinutes  int            `bun:"open_minutes,notnull"`
	CloseMinutes int            `bun:"close_minutes,notnull"`
	Timezone     string         `bun:"timezone,notnull"`
	Amenities    []string       `bun:"amenities,array"`
	CreatedAt    time.Time      `bun:"created_at,notnull"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull"`
}

func (r *Resource) Bookable() bool {
	return r.Status == ResourceStatusBookable
}

// Location resolves the resource's IANA time zone, falling back to UTC when
// the catalog left it empty.
func (r *Resource) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// OperatingWindow is the resource's open-hours interval on the calendar day
// containing day, interpreted in loc.
func (r *Resource) OperatingWindow(day time.Time, loc *time.Location) Interval {
	local := day.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return NewInterval(
		midnight.Add(time.Duration(r.OpenMinutes)*time.Minute),
		midnight.Add(time.Duration(r.CloseMinutes)*time.Minute),
	)
}
