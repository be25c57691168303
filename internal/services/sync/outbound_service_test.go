package sync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	syncservice "github.com/stayguard/chargeback-service/internal/services/sync"
)

func outboundJob(action string) ports.OutboundJob {
	return ports.OutboundJob{
		SourceSystem:  "cloudpms",
		IntegrationID: "int-1",
		Action:        action,
		Payload: map[string]interface{}{
			"reservation_id": "res-9001",
			"case_number":    "CB-AB12CD34",
			"subject":        "Chargeback alert",
			"body":           "A dispute was filed against reservation res-9001",
		},
	}
}

func TestOutbound_PushNoteDelivered(t *testing.T) {
	registry := new(MockAdapterRegistry)
	adapter := new(MockPMSAdapter)
	syncLog := new(MockSyncLogRepository)
	svc := syncservice.NewOutboundService(registry, syncLog, testLogger{})

	registry.On("Resolve", "cloudpms").Return(adapter, nil)

	var push ports.OutboundPush
	adapter.On("PushNote", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			push = args.Get(1).(ports.OutboundPush)
		}).Return(nil)
	syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := svc.Process(context.Background(), outboundJob(syncservice.ActionPushNote))

	require.NoError(t, err)
	adapter.AssertExpectations(t)
	assert.Equal(t, "res-9001", push.ReservationID)
	assert.Equal(t, "CB-AB12CD34", push.CaseNumber)

	require.Len(t, syncLog.entries, 1)
	assert.Equal(t, models.SyncDirectionOutbound, syncLog.entries[0].Direction)
	assert.Equal(t, models.SyncStatusCompleted, syncLog.entries[0].Status)
}

func TestOutbound_DisputeOutcomeFailureAudited(t *testing.T) {
	registry := new(MockAdapterRegistry)
	adapter := new(MockPMSAdapter)
	syncLog := new(MockSyncLogRepository)
	svc := syncservice.NewOutboundService(registry, syncLog, testLogger{})

	registry.On("Resolve", "cloudpms").Return(adapter, nil)
	adapter.On("PushDisputeOutcome", mock.Anything, mock.Anything).Return(assert.AnError)
	syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := svc.Process(context.Background(), outboundJob(syncservice.ActionDisputeOutcome))

	require.Error(t, err)
	require.Len(t, syncLog.entries, 1)
	assert.Equal(t, models.SyncStatusFailed, syncLog.entries[0].Status)
	require.NotNil(t, syncLog.entries[0].ErrorMessage)
}

func TestOutbound_UnknownActionSkipped(t *testing.T) {
	registry := new(MockAdapterRegistry)
	adapter := new(MockPMSAdapter)
	syncLog := new(MockSyncLogRepository)
	svc := syncservice.NewOutboundService(registry, syncLog, testLogger{})

	registry.On("Resolve", "cloudpms").Return(adapter, nil)
	syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := svc.Process(context.Background(), outboundJob("push_unknown"))

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	adapter.AssertNotCalled(t, "PushNote", mock.Anything, mock.Anything)
}

func TestOutbound_UnsupportedSourceSystemSkipped(t *testing.T) {
	registry := new(MockAdapterRegistry)
	syncLog := new(MockSyncLogRepository)
	svc := syncservice.NewOutboundService(registry, syncLog, testLogger{})

	registry.On("Resolve", "cloudpms").Return(nil, domain.ErrUnsupportedSourceSystem)

	err := svc.Process(context.Background(), outboundJob(syncservice.ActionPushFlag))

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAdapterUnsupported))
	syncLog.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}
