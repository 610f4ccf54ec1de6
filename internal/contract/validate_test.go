package contract

import (
	"errors"
	"testing"
	"time"

	"github.com/huangsam/perfscope/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAlertConfig() schema.AlertConfig {
	return schema.AlertConfig{
		Name:          "low fps",
		MetricType:    schema.FpsMetric,
		Condition:     schema.ConditionBelow,
		Threshold:     30,
		WindowMinutes: 15,
		Severity:      schema.SeverityHigh,
		Enabled:       true,
	}
}

func TestValidateStructAlertConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(validAlertConfig()))
	})

	t.Run("bad enum and window", func(t *testing.T) {
		c := validAlertConfig()
		c.MetricType = "battery"
		c.WindowMinutes = 0
		err := ValidateStruct(c)
		require.Error(t, err)
		assert.True(t, IsValidation(err))

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		fields := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			fields = append(fields, f.Field)
		}
		assert.Contains(t, fields, "AlertConfig.metric_type")
		assert.Contains(t, fields, "AlertConfig.window_minutes")
		assert.Contains(t, err.Error(), "oneof=")
	})

	t.Run("missing name", func(t *testing.T) {
		c := validAlertConfig()
		c.Name = ""
		err := ValidateStruct(c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AlertConfig.name must satisfy required")
	})
}

func TestValidateStructIngestBatch(t *testing.T) {
	now := time.Now()
	batch := schema.IngestBatch{
		Sessions: []schema.Session{{ID: "s1", SessionStart: now}},
		Metrics: []schema.MetricSample{
			{SessionID: "s1", Timestamp: now, MetricType: schema.FpsMetric, Value: 58},
		},
	}
	assert.NoError(t, ValidateStruct(batch))

	batch.Metrics = append(batch.Metrics, schema.MetricSample{SessionID: "", Timestamp: now, MetricType: schema.FpsMetric, Value: -1})
	err := ValidateStruct(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IngestBatch.metrics[1].session_id")
	assert.Contains(t, err.Error(), "IngestBatch.metrics[1].value")
}

func TestIsValidation(t *testing.T) {
	assert.False(t, IsValidation(errors.New("plain")))
	assert.True(t, IsValidation(&ValidationError{}))
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())
}
