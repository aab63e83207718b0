package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartwatch/alert-engine/internal/models"
)

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func newTestAlert(symbol string) *models.Alert {
	return &models.Alert{
		UserID:          "user-1",
		Symbol:          symbol,
		ConditionType:   models.ConditionCrossesUp,
		Params:          models.ConditionParams{Threshold: decPtr(200)},
		CooldownSeconds: 60,
		TriggerMode:     models.TriggerModeOncePerBarClose,
		IsActive:        true,
	}
}

func TestAlertsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("CreateAlert creates new alert", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		alert.EnabledConditions = map[string]bool{models.ConditionSlopeBullish: true}
		alert.MessageTemplates = map[string]string{
			models.ConditionCrossesUp: "{{symbol}} broke {{threshold}}",
		}

		err := testDB.CreateAlert(ctx, alert)
		require.NoError(t, err)
		assert.NotZero(t, alert.ID)
		assert.False(t, alert.CreatedAt.IsZero())
	})

	t.Run("GetAlertByID round-trips all fields", func(t *testing.T) {
		testDB.TruncateAll(t)

		indicator := "RSI"
		field := "value"
		alert := newTestAlert("GOOGL")
		alert.ConditionType = models.ConditionBelow
		alert.Params = models.ConditionParams{Threshold: decPtr(30)}
		alert.IndicatorName = &indicator
		alert.IndicatorField = &field
		alert.EnabledConditions = map[string]bool{models.ConditionSlopeBearish: true}
		alert.MessageTemplates = map[string]string{models.ConditionBelow: "oversold!"}
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		got, err := testDB.GetAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.Equal(t, "GOOGL", got.Symbol)
		assert.Equal(t, models.ConditionBelow, got.ConditionType)
		require.NotNil(t, got.Params.Threshold)
		assert.True(t, decimal.NewFromFloat(30).Equal(*got.Params.Threshold))
		require.NotNil(t, got.IndicatorName)
		assert.Equal(t, "RSI", *got.IndicatorName)
		assert.Equal(t, map[string]bool{models.ConditionSlopeBearish: true}, got.EnabledConditions)
		assert.Equal(t, "oversold!", got.MessageTemplates[models.ConditionBelow])
		assert.True(t, got.IsActive)
		assert.False(t, got.IsMuted)
		assert.Nil(t, got.LastTriggeredAt)
	})

	t.Run("GetActiveAlertsBySymbol filters and orders", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := newTestAlert("MSFT")
		second := newTestAlert("MSFT")
		inactive := newTestAlert("MSFT")
		inactive.IsActive = false
		other := newTestAlert("AMZN")
		for _, a := range []*models.Alert{first, second, inactive, other} {
			require.NoError(t, testDB.CreateAlert(ctx, a))
		}

		alerts, err := testDB.GetActiveAlertsBySymbol(ctx, "MSFT")
		require.NoError(t, err)
		require.Len(t, alerts, 2)
		assert.Equal(t, first.ID, alerts[0].ID)
		assert.Equal(t, second.ID, alerts[1].ID)
	})

	t.Run("GetActiveAlertsBySymbol includes muted alerts", func(t *testing.T) {
		testDB.TruncateAll(t)

		muted := newTestAlert("NVDA")
		muted.IsMuted = true
		require.NoError(t, testDB.CreateAlert(ctx, muted))

		alerts, err := testDB.GetActiveAlertsBySymbol(ctx, "NVDA")
		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.True(t, alerts[0].IsMuted)
	})

	t.Run("UpdateAlert persists changes", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("TSLA")
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		alert.CooldownSeconds = 300
		alert.TriggerMode = models.TriggerModeOnce
		alert.Params.Threshold = decPtr(250)
		require.NoError(t, testDB.UpdateAlert(ctx, alert))

		got, err := testDB.GetAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.Equal(t, 300, got.CooldownSeconds)
		assert.Equal(t, models.TriggerModeOnce, got.TriggerMode)
		assert.True(t, decimal.NewFromFloat(250).Equal(*got.Params.Threshold))
	})

	t.Run("SetAlertMuted toggles mute", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		require.NoError(t, testDB.SetAlertMuted(ctx, alert.ID, true))
		got, err := testDB.GetAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.True(t, got.IsMuted)

		require.NoError(t, testDB.SetAlertMuted(ctx, alert.ID, false))
		got, err = testDB.GetAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.False(t, got.IsMuted)
	})

	t.Run("DeleteAlert removes alert but keeps triggers", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		trigger := &models.AlertTrigger{
			AlertID:        alert.ID,
			Symbol:         "AAPL",
			TriggerType:    models.ConditionCrossesUp,
			ObservedValue:  decimal.NewFromFloat(201),
			TriggerMessage: "AAPL broke 200",
			TriggeredAt:    time.Now().UTC().Truncate(time.Second),
		}
		now := time.Now()
		alert.LastTriggeredAt = &now
		require.NoError(t, testDB.RecordTriggers(ctx, alert, []*models.AlertTrigger{trigger}))

		require.NoError(t, testDB.DeleteAlert(ctx, alert.ID))

		_, err := testDB.GetAlertByID(ctx, alert.ID)
		assert.Error(t, err)

		// The trigger log survives for audit.
		got, err := testDB.GetTriggerByID(ctx, trigger.ID)
		require.NoError(t, err)
		assert.Equal(t, alert.ID, got.AlertID)
	})

	t.Run("RecordTriggers is atomic with alert state", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AMD")
		alert.TriggerMode = models.TriggerModeOnce
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		barClose := time.Date(2025, 6, 2, 14, 31, 0, 0, time.UTC)
		triggers := []*models.AlertTrigger{
			{
				AlertID:        alert.ID,
				Symbol:         "AMD",
				TriggerType:    models.ConditionCrossesUp,
				ObservedValue:  decimal.NewFromFloat(151),
				TriggerMessage: "AMD broke 150",
				TriggeredAt:    barClose,
			},
			{
				AlertID:        alert.ID,
				Symbol:         "AMD",
				TriggerType:    models.ConditionSlopeBullish,
				ObservedValue:  decimal.NewFromFloat(151),
				TriggerMessage: "AMD turned up",
				TriggeredAt:    barClose,
			},
		}
		alert.LastTriggeredAt = &barClose
		alert.LastBarTriggered = &barClose
		alert.IsActive = false

		require.NoError(t, testDB.RecordTriggers(ctx, alert, triggers))
		assert.NotZero(t, triggers[0].ID)
		assert.NotZero(t, triggers[1].ID)

		got, err := testDB.GetAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.LastTriggeredAt)
		assert.True(t, got.LastTriggeredAt.Equal(barClose))
		require.NotNil(t, got.LastBarTriggered)
		assert.True(t, got.LastBarTriggered.Equal(barClose))

		stored, err := testDB.GetTriggersByAlertID(ctx, alert.ID)
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("cooldown check constraint rejects zero", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		alert.CooldownSeconds = 0
		err := testDB.CreateAlert(ctx, alert)
		assert.Error(t, err)
	})
}

func TestTriggersRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	recordTrigger := func(t *testing.T, alert *models.Alert, symbol string, at time.Time) *models.AlertTrigger {
		t.Helper()
		trigger := &models.AlertTrigger{
			AlertID:        alert.ID,
			Symbol:         symbol,
			TriggerType:    models.ConditionCrossesUp,
			ObservedValue:  decimal.NewFromFloat(201.5),
			TriggerMessage: symbol + " broke 200",
			TriggeredAt:    at,
		}
		alert.LastTriggeredAt = &at
		require.NoError(t, testDB.RecordTriggers(ctx, alert, []*models.AlertTrigger{trigger}))
		return trigger
	}

	t.Run("GetTriggerByID round-trips", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		require.NoError(t, testDB.CreateAlert(ctx, alert))
		at := time.Date(2025, 6, 2, 14, 31, 0, 0, time.UTC)
		trigger := recordTrigger(t, alert, "AAPL", at)

		got, err := testDB.GetTriggerByID(ctx, trigger.ID)
		require.NoError(t, err)
		assert.Equal(t, alert.ID, got.AlertID)
		assert.Equal(t, "AAPL", got.Symbol)
		assert.Equal(t, models.ConditionCrossesUp, got.TriggerType)
		assert.True(t, decimal.NewFromFloat(201.5).Equal(got.ObservedValue))
		assert.Equal(t, "AAPL broke 200", got.TriggerMessage)
		assert.True(t, got.TriggeredAt.Equal(at))
	})

	t.Run("GetRecentTriggers orders newest first", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
		var ids []int
		for i := 0; i < 3; i++ {
			trig := recordTrigger(t, alert, "AAPL", base.Add(time.Duration(i)*time.Minute))
			ids = append(ids, trig.ID)
		}

		recent, err := testDB.GetRecentTriggers(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, ids[2], recent[0].ID)
		assert.Equal(t, ids[0], recent[2].ID)
	})

	t.Run("GetRecentTriggers paginates", func(t *testing.T) {
		testDB.TruncateAll(t)

		alert := newTestAlert("AAPL")
		require.NoError(t, testDB.CreateAlert(ctx, alert))

		base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			recordTrigger(t, alert, "AAPL", base.Add(time.Duration(i)*time.Minute))
		}

		page1, err := testDB.GetRecentTriggers(ctx, 2, 0)
		require.NoError(t, err)
		page2, err := testDB.GetRecentTriggers(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page1, 2)
		require.Len(t, page2, 2)
		assert.NotEqual(t, page1[0].ID, page2[0].ID)
		assert.True(t, page1[1].TriggeredAt.After(page2[0].TriggeredAt) ||
			page1[1].TriggeredAt.Equal(page2[0].TriggeredAt))
	})

	t.Run("GetRecentTriggersBySymbol filters", func(t *testing.T) {
		testDB.TruncateAll(t)

		appleAlert := newTestAlert("AAPL")
		teslaAlert := newTestAlert("TSLA")
		require.NoError(t, testDB.CreateAlert(ctx, appleAlert))
		require.NoError(t, testDB.CreateAlert(ctx, teslaAlert))

		at := time.Date(2025, 6, 2, 14, 31, 0, 0, time.UTC)
		recordTrigger(t, appleAlert, "AAPL", at)
		recordTrigger(t, teslaAlert, "TSLA", at)

		apple, err := testDB.GetRecentTriggersBySymbol(ctx, "AAPL", 10, 0)
		require.NoError(t, err)
		require.Len(t, apple, 1)
		assert.Equal(t, "AAPL", apple[0].Symbol)
	})
}
