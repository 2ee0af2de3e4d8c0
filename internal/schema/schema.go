// Package schema defines the event families accepted by the collector and
// the validation, normalization, and summary rules applied to incoming
// events. Families are configuration, not code: the built-in set below can
// be replaced wholesale by a YAML policy file.
package schema

// Family describes one accepted event type.
type Family struct {
	// Name matches the event's discriminator field ("eventType", with
	// "sourcetype" as fallback).
	Name string `yaml:"name" json:"name"`

	// Required lists fields that must be present, checked in order. The
	// first missing field is the one reported.
	Required []string `yaml:"required" json:"required"`

	// FieldMapping renames legacy sender fields before validation. A
	// mapping source -> target moves the value when the target is absent.
	FieldMapping map[string]string `yaml:"field_mapping,omitempty" json:"field_mapping,omitempty"`

	// TimestampField names the field carrying the event time. The generic
	// "time" field is tried when this is unset or absent from the event.
	TimestampField string `yaml:"timestamp_field,omitempty" json:"timestamp_field,omitempty"`

	// SummaryFields lists the fields kept by summary mode. When empty,
	// summary mode keeps all top-level scalar fields instead.
	SummaryFields []string `yaml:"summary_fields,omitempty" json:"summary_fields,omitempty"`
}

// Policy is the full set of event families a tenant's events are validated
// against. A Policy is immutable once built; reloads swap the whole value.
type Policy struct {
	Families []Family `yaml:"families"`

	byName map[string]int
}

// TimeField is the generic fallback timestamp field checked on every
// family, mirroring the collector wire protocol's envelope time.
const TimeField = "time"

// Default returns the built-in policy covering the event families the
// upstream network platform emits.
func Default() *Policy {
	p := &Policy{
		Families: []Family{
			{
				Name: "audit_trail",
				Required: []string{
					"version", "id", "auditTime", "user", "sourceIP", "agent",
					"auditDescription", "entity", "action", "result",
				},
				TimestampField: "auditTime",
				SummaryFields:  []string{"id", "user", "action", "auditDescription"},
			},
			{
				Name: "end_user_device_events",
				Required: []string{
					"eventType", "macAddress", "ssid", "bssid", "clientEventDescription",
					"clientEventTime", "clientEventStatus",
				},
				FieldMapping: map[string]string{
					"clientMac":                    "macAddress",
					"clientEventTimestamp":         "clientEventTime",
					"clientEventAdditionalDetails": "additionalDetails",
					"connectedSsid":                "ssid",
					"connectedBssid":               "bssid",
					"clientEventSeverity":          "clientEventStatus",
				},
				TimestampField: "clientEventTime",
				SummaryFields:  []string{"macAddress", "clientEventDescription", "clientEventStatus"},
			},
			{
				Name: "nile_alerts",
				Required: []string{
					"version", "id", "alertSubscriptionCategory", "alertType", "alertStatus",
					"alertSubject", "alertDescription", "alertTime", "alertSeverity",
				},
				FieldMapping: map[string]string{
					"startTime":    "alertTime",
					"alertSummary": "alertDescription",
				},
				TimestampField: "alertTime",
				SummaryFields:  []string{"id", "alertType", "alertSubject", "alertSeverity"},
			},
			{
				Name:     "test",
				Required: []string{"test-message", "eventType", "time", "sourcetype"},
			},
		},
	}
	p.index()
	return p
}

// Family returns the family with the given name.
func (p *Policy) Family(name string) (*Family, bool) {
	i, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return &p.Families[i], true
}

func (p *Policy) index() {
	p.byName = make(map[string]int, len(p.Families))
	for i := range p.Families {
		p.byName[p.Families[i].Name] = i
	}
}
