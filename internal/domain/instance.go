package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InstanceKey identifies a logical occurrence. Persisted and virtual rows
// for the same occurrence carry different ids, so identity is the provider
// plus the occupied interval. Instants are compared as Unix nanoseconds so
// two timestamps for the same moment in different zones or formats collide.
type InstanceKey struct {
	ProviderID uuid.UUID
	StartUnix  int64
	EndUnix    int64
}

func NewInstanceKey(providerID uuid.UUID, start, end time.Time) InstanceKey {
	return InstanceKey{
		ProviderID: providerID,
		StartUnix:  start.UTC().UnixNano(),
		EndUnix:    end.UTC().UnixNano(),
	}
}

// Instance is one calendar entry handed to callers: either a persisted
// appointment row or a virtual occurrence computed from a rule.
type Instance struct {
	AppointmentID       *uuid.UUID
	RuleID              *uuid.UUID
	ProviderID          uuid.UUID
	ClientID            uuid.UUID
	ListingID           uuid.UUID
	StartTime           time.Time
	EndTime             time.Time
	Status              AppointmentStatus
	Recurrence          RecurrenceType
	IsRecurringInstance bool
	IsVirtual           bool
	ClientName          string
	Location            string
	Notes               string
}

func (i Instance) Key() InstanceKey {
	return NewInstanceKey(i.ProviderID, i.StartTime, i.EndTime)
}

// locationFallback is the last-resort display location. Every merged
// instance carries a non-empty location.
const locationFallback = "Location to be confirmed"

// ResolveLocation builds the display location from whatever address data is
// on the row and the client profile, in that order of preference.
func ResolveLocation(parts ...string) string {
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			return s
		}
	}
	return locationFallback
}

// InstanceFromAppointment converts a persisted row into a calendar instance.
func InstanceFromAppointment(a Appointment) Instance {
	id := a.ID
	return Instance{
		AppointmentID:       &id,
		RuleID:              a.RecurringRuleID,
		ProviderID:          a.ProviderID,
		ClientID:            a.ClientID,
		ListingID:           a.ListingID,
		StartTime:           a.StartTime.UTC(),
		EndTime:             a.EndTime.UTC(),
		Status:              a.Status,
		Recurrence:          a.Recurrence,
		IsRecurringInstance: a.IsRecurringInstance,
		IsVirtual:           false,
		ClientName:          a.ClientName,
		Location:            ResolveLocation(a.ClientAddress),
		Notes:               a.Notes,
	}
}

// InstanceFromOccurrence converts a resolved virtual occurrence into a
// calendar instance carrying a back-reference to its rule. Cancelled
// occurrences have no instance; callers filter them before conversion.
func InstanceFromOccurrence(o ResolvedOccurrence, rule RecurringRule) Instance {
	ruleID := o.RuleID
	notes := o.Notes
	if notes == "" {
		notes = rule.Notes
	}
	return Instance{
		RuleID:              &ruleID,
		ProviderID:          o.ProviderID,
		ClientID:            o.ClientID,
		ListingID:           o.ListingID,
		StartTime:           o.StartTime.UTC(),
		EndTime:             o.EndTime.UTC(),
		Status:              AppointmentStatusScheduled,
		Recurrence:          rule.Recurrence,
		IsRecurringInstance: true,
		IsVirtual:           true,
		ClientName:          rule.ClientName,
		Location:            ResolveLocation(rule.Address),
		Notes:               notes,
	}
}

// MergeInstances merges persisted rows with virtual occurrences. When both
// occupy the same (provider, start, end) slot the persisted one wins: once
// someone explicitly interacted with an occurrence it became a durable row
// and must not be shadowed by a freshly re-generated virtual one. Output is
// ascending by start time with no duplicate keys.
func MergeInstances(persisted, virtual []Instance) []Instance {
	seen := make(map[InstanceKey]struct{}, len(persisted)+len(virtual))
	out := make([]Instance, 0, len(persisted)+len(virtual))

	for _, p := range persisted {
		key := p.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	for _, v := range virtual {
		key := v.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
