package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1714557600, 0) // 2024-05-01T10:00:00Z

const alertID = "3f2c8a4e-9b1d-4e6f-8a2b-5c7d9e0f1a2b"

func validAlertBody() []byte {
	return []byte(`{"eventType":"nile_alerts","version":"1.0","id":"` + alertID + `","alertSubscriptionCategory":"network","alertType":"DEVICE_OFFLINE","alertStatus":"active","alertSubject":"Switch offline","alertDescription":"Access switch stopped responding","alertTime":"2024-05-01T10:00:00Z","alertSeverity":"critical"}`)
}

func TestNormalizeAcceptsKnownFamily(t *testing.T) {
	p := Default()
	body := validAlertBody()

	ev, err := p.Normalize(body, false, false, testNow)
	require.NoError(t, err)

	assert.Equal(t, "nile_alerts", ev.Type)
	assert.Equal(t, alertID, ev.ID)
	assert.Equal(t, int64(1714557600), ev.Timestamp)
	// Nothing was rewritten, so the stored payload is the request body.
	assert.Equal(t, body, ev.Data)
}

func TestNormalizeRejectsUnknownType(t *testing.T) {
	p := Default()

	_, err := p.Normalize([]byte(`{"eventType":"mystery","payload":"x"}`), false, false, testNow)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonSchemaMismatch, verr.Reason)
	assert.Equal(t, `unknown event type "mystery"`, verr.Message)
}

func TestNormalizeReportsFirstMissingField(t *testing.T) {
	p := Default()
	body := []byte(`{"eventType":"audit_trail","version":"1.0","id":"` + alertID + `","user":"admin"}`)

	_, err := p.Normalize(body, false, false, testNow)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonSchemaMismatch, verr.Reason)
	assert.Equal(t, `event type "audit_trail" missing required field "auditTime"`, verr.Message)
}

func TestNormalizeBypassSkipsSchemaChecks(t *testing.T) {
	p := Default()

	ev, err := p.Normalize([]byte(`{"eventType":"mystery","payload":"x"}`), true, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, "mystery", ev.Type)
	assert.Equal(t, testNow.Unix(), ev.Timestamp)
}

func TestNormalizeRejectsMalformedJSON(t *testing.T) {
	p := Default()

	bodies := map[string][]byte{
		"truncated":     []byte(`{"eventType":`),
		"trailing data": []byte(`{"eventType":"test"} extra`),
		"array":         []byte(`[1,2,3]`),
		"bare string":   []byte(`"hello"`),
		"empty":         nil,
	}

	for name, body := range bodies {
		for _, bypass := range []bool{false, true} {
			_, err := p.Normalize(body, bypass, false, testNow)
			require.Error(t, err, "%s (bypass=%v)", name, bypass)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "%s (bypass=%v)", name, bypass)
			assert.Equal(t, ReasonMalformedBody, verr.Reason, "%s (bypass=%v)", name, bypass)
		}
	}
}

func TestNormalizeGeneratesEventID(t *testing.T) {
	p := Default()
	body := `{"eventType":"mystery"}`

	ev1, err := p.Normalize([]byte(body), true, false, testNow)
	require.NoError(t, err)
	ev2, err := p.Normalize([]byte(body), true, false, testNow)
	require.NoError(t, err)

	_, err = uuid.Parse(ev1.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, ev1.ID, ev2.ID)
}

func TestNormalizeAdoptsValidEventID(t *testing.T) {
	p := Default()

	ev, err := p.Normalize([]byte(`{"eventType":"mystery","id":"`+alertID+`"}`), true, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, alertID, ev.ID)

	// A non-UUID id is ignored under bypass and a fresh one generated.
	ev, err = p.Normalize([]byte(`{"eventType":"mystery","id":"evt-42"}`), true, false, testNow)
	require.NoError(t, err)
	assert.NotEqual(t, "evt-42", ev.ID)
	_, err = uuid.Parse(ev.ID)
	assert.NoError(t, err)
}

func TestNormalizeRejectsBadIDStrict(t *testing.T) {
	p := Default()
	body := []byte(`{"eventType":"test","test-message":"hi","time":1700000000,"sourcetype":"syslog","id":"evt-42"}`)

	_, err := p.Normalize(body, false, false, testNow)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonSchemaMismatch, verr.Reason)
	assert.Equal(t, `id field is not a valid UUID: "evt-42"`, verr.Message)
}

func TestNormalizeTimestampPrecedence(t *testing.T) {
	p := Default()

	// The family's own timestamp field wins over the generic one.
	body := validAlertBody()
	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	fields["time"] = 1600000000
	withTime, err := json.Marshal(fields)
	require.NoError(t, err)

	ev, err := p.Normalize(withTime, false, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1714557600), ev.Timestamp)

	// Families without a timestamp field fall back to "time".
	ev, err = p.Normalize([]byte(`{"eventType":"test","test-message":"hi","time":1700000000,"sourcetype":"syslog"}`), false, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ev.Timestamp)

	// No usable field at all falls back to the ingestion clock.
	ev, err = p.Normalize([]byte(`{"eventType":"mystery"}`), true, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), ev.Timestamp)
}

func TestParseTimestampForms(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{json.Number("1714557600"), 1714557600, true},
		{json.Number("1714557600.75"), 1714557600, true},
		{"1714557600", 1714557600, true},
		{"2024-05-01T10:00:00Z", 1714557600, true},
		{"2024-05-01T10:00:00", 1714557600, true},
		{"2024-05-01 10:00:00", 1714557600, true},
		{"", 0, false},
		{"soon", 0, false},
		{true, 0, false},
		{nil, 0, false},
	}

	for _, tc := range cases {
		got, ok := parseTimestamp(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %v", tc.in)
		}
	}
}

func TestNormalizeUnwrapsEnvelope(t *testing.T) {
	p := Default()
	body := []byte(`{"time":1714557600,"sourcetype":"syslog","host":"gw-01","fields":{"region":"emea"},"event":{"eventType":"mystery","payload":"x"}}`)

	ev, err := p.Normalize(body, true, false, testNow)
	require.NoError(t, err)

	assert.Equal(t, "mystery", ev.Type)
	assert.Equal(t, int64(1714557600), ev.Timestamp)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &stored))
	assert.Equal(t, "x", stored["payload"])
	assert.Equal(t, "syslog", stored["sourcetype"])
	assert.Equal(t, "gw-01", stored["host"])
	assert.Equal(t, "emea", stored["region"])
	_, hasEnvelope := stored["event"]
	assert.False(t, hasEnvelope)
}

func TestNormalizeEnvelopeDoesNotOverwrite(t *testing.T) {
	p := Default()
	body := []byte(`{"time":1600000000,"host":"outer","event":{"eventType":"mystery","time":1714557600,"host":"inner"}}`)

	ev, err := p.Normalize(body, true, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1714557600), ev.Timestamp)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &stored))
	assert.Equal(t, "inner", stored["host"])
}

func TestNormalizeRejectsNonObjectEnvelope(t *testing.T) {
	p := Default()

	_, err := p.Normalize([]byte(`{"event":"plain text line"}`), true, false, testNow)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ReasonMalformedBody, verr.Reason)
}

func TestNormalizeAppliesFieldMapping(t *testing.T) {
	p := Default()
	body := []byte(`{"eventType":"end_user_device_events","clientMac":"aa:bb:cc:dd:ee:ff","connectedSsid":"corp","connectedBssid":"11:22:33:44:55:66","clientEventDescription":"associated","clientEventTimestamp":"2024-05-01T10:00:00Z","clientEventSeverity":"info"}`)

	ev, err := p.Normalize(body, false, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1714557600), ev.Timestamp)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &stored))
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", stored["macAddress"])
	assert.Equal(t, "corp", stored["ssid"])
	assert.Equal(t, "info", stored["clientEventStatus"])
	_, hasLegacy := stored["clientMac"]
	assert.False(t, hasLegacy)
}

func TestNormalizeMappingKeepsExistingTarget(t *testing.T) {
	p := Default()
	body := []byte(`{"eventType":"end_user_device_events","clientMac":"aa:aa:aa:aa:aa:aa","macAddress":"bb:bb:bb:bb:bb:bb","ssid":"corp","bssid":"11:22:33:44:55:66","clientEventDescription":"associated","clientEventTime":1714557600,"clientEventStatus":"info"}`)

	ev, err := p.Normalize(body, false, false, testNow)
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &stored))
	assert.Equal(t, "bb:bb:bb:bb:bb:bb", stored["macAddress"])
	assert.Equal(t, "aa:aa:aa:aa:aa:aa", stored["clientMac"])
}

func TestNormalizeSummaryModeFamilyProjection(t *testing.T) {
	p := Default()

	ev, err := p.Normalize(validAlertBody(), false, true, testNow)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"id":            alertID,
		"alertType":     "DEVICE_OFFLINE",
		"alertSubject":  "Switch offline",
		"alertSeverity": "critical",
	}, ev.Fields)

	// Same input yields the same bytes.
	again, err := p.Normalize(validAlertBody(), false, true, testNow)
	require.NoError(t, err)
	assert.Equal(t, ev.Data, again.Data)
}

func TestNormalizeSummaryModeScalarFallback(t *testing.T) {
	p := Default()
	body := []byte(`{"a":1,"b":{"c":2},"d":[1,2],"e":null,"f":"x"}`)

	ev, err := p.Normalize(body, true, true, testNow)
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(ev.Data, &stored))
	assert.Equal(t, map[string]any{"a": float64(1), "e": nil, "f": "x"}, stored)
}

func TestNormalizePreservesBodyBytes(t *testing.T) {
	p := Default()
	// Irregular whitespace survives because the payload is stored verbatim.
	body := []byte(`{"eventType":"test",  "test-message":"hi","time":1700000000,   "sourcetype":"syslog"}`)

	ev, err := p.Normalize(body, false, false, testNow)
	require.NoError(t, err)
	assert.Equal(t, body, ev.Data)
}
