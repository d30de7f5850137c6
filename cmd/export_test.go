package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/model"
)

func TestWriteSignalsCSV(t *testing.T) {
	received, err := time.Parse(time.RFC3339, "2026-08-27T14:00:00Z")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = writeSignalsCSV(&buf, []model.RequisitionSignal{
		{
			ID:             7,
			Title:          "Data Engineer",
			Location:       "Austin, TX",
			RateText:       "$65/hr",
			EmploymentType: model.EmploymentC2C,
			Skills:         []string{"Spark", "Snowflake"},
			Status:         model.SignalStatusNew,
			Actionability:  85,
			ClosureScore:   72.5,
			ClosureTier:    "HOT",
			ReceivedAt:     received,
		},
	})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t,
		"id,title,location,rate,employment_type,skills,status,actionability,closure_score,closure_tier,received_at",
		string(lines[0]))
	assert.Equal(t,
		"7,Data Engineer,\"Austin, TX\",$65/hr,C2C,Spark;Snowflake,NEW,85.0,72.5,HOT,2026-08-27T14:00:00Z",
		string(lines[1]))
}
