package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Harvey-AU/page-pulse/internal/client"
	"github.com/Harvey-AU/page-pulse/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func metricsPayload(t *testing.T, m client.Metrics) json.RawMessage {
	t.Helper()
	data, _ := json.Marshal(m)
	return data
}

func TestSaveMetrics_UnhealthyStoreShortCircuits(t *testing.T) {
	api := &mocks.MockVisitAPI{}
	api.On("CheckHealth", mock.Anything).Return(false)

	r := New(api)

	payload := metricsPayload(t, client.Metrics{URL: "https://x.test", LinkCount: 3})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgSaveMetrics, Data: payload})

	assert.False(t, resp.Success)
	assert.Equal(t, ErrBackendUnavailable.Error(), resp.Error)

	// Fail-fast means the save is never attempted
	api.AssertNotCalled(t, "SaveVisit", mock.Anything, mock.Anything)
	api.AssertExpectations(t)
}

func TestSaveMetrics_HealthyStoreDelegates(t *testing.T) {
	visit := &client.Visit{
		ID:         "7b3f7a60-6f0a-4f6c-a94d-2f8a6a1f0c11",
		URL:        "https://x.test",
		LinkCount:  3,
		WordCount:  120,
		ImageCount: 1,
		VisitedAt:  time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	api := &mocks.MockVisitAPI{}
	api.On("CheckHealth", mock.Anything).Return(true)
	api.On("SaveVisit", mock.Anything, mock.MatchedBy(func(m *client.Metrics) bool {
		return m.URL == "https://x.test" && m.LinkCount == 3 && m.WordCount == 120
	})).Return(visit, nil)

	r := New(api)

	payload := metricsPayload(t, client.Metrics{URL: "https://x.test", LinkCount: 3, WordCount: 120, ImageCount: 1})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgSaveMetrics, Data: payload})

	require.True(t, resp.Success, "unexpected error: %s", resp.Error)
	assert.Equal(t, visit, resp.Data)
	api.AssertExpectations(t)
}

func TestSaveMetrics_OutcomeForwardedVerbatim(t *testing.T) {
	saveErr := &client.Error{Kind: client.KindAPI, StatusCode: http.StatusBadGateway, Message: "upstream down"}

	api := &mocks.MockVisitAPI{}
	api.On("CheckHealth", mock.Anything).Return(true)
	api.On("SaveVisit", mock.Anything, mock.Anything).Return(nil, saveErr)

	notifier := &mocks.MockNotifier{}
	notifier.On("NotifySaveFailed", mock.Anything, "https://x.test", saveErr).Return()

	r := New(api, WithNotifier(notifier))

	payload := metricsPayload(t, client.Metrics{URL: "https://x.test"})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgSaveMetrics, Data: payload})

	assert.False(t, resp.Success)
	assert.Equal(t, saveErr.Error(), resp.Error)
	notifier.AssertExpectations(t)
}

func TestSaveMetrics_ValidationErrorNotNotified(t *testing.T) {
	valErr := &client.Error{Kind: client.KindValidation, Message: "url must not be empty"}

	api := &mocks.MockVisitAPI{}
	api.On("CheckHealth", mock.Anything).Return(true)
	api.On("SaveVisit", mock.Anything, mock.Anything).Return(nil, valErr)

	notifier := &mocks.MockNotifier{}

	r := New(api, WithNotifier(notifier))

	payload := metricsPayload(t, client.Metrics{URL: ""})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgSaveMetrics, Data: payload})

	assert.False(t, resp.Success)
	notifier.AssertNotCalled(t, "NotifySaveFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetHistory_DelegatesWithoutHealthProbe(t *testing.T) {
	page := &client.HistoryPage{
		Visits: []client.Visit{{ID: "a", URL: "https://x.test"}},
		Total:  7,
	}

	api := &mocks.MockVisitAPI{}
	api.On("GetHistory", mock.Anything, "https://x.test", 10, 20).Return(page, nil)

	r := New(api)

	payload, _ := json.Marshal(HistoryRequest{URL: "https://x.test", Limit: 10, Offset: 20})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgGetHistory, Data: payload})

	require.True(t, resp.Success)
	assert.Equal(t, page, resp.Data)

	// Reads are idempotent: no fail-fast probe on the history path
	api.AssertNotCalled(t, "CheckHealth", mock.Anything)
	api.AssertExpectations(t)
}

func TestGetHistory_ErrorSurfaces(t *testing.T) {
	histErr := &client.Error{Kind: client.KindTimeout, Message: "request deadline exceeded"}

	api := &mocks.MockVisitAPI{}
	api.On("GetHistory", mock.Anything, "https://x.test", 10, 0).Return(nil, histErr)

	r := New(api)

	payload, _ := json.Marshal(HistoryRequest{URL: "https://x.test", Limit: 10})
	resp := <-r.Dispatch(context.Background(), Message{Type: MsgGetHistory, Data: payload})

	assert.False(t, resp.Success)
	assert.Equal(t, histErr.Error(), resp.Error)
}

func TestSaveMetrics_MalformedPayload(t *testing.T) {
	api := &mocks.MockVisitAPI{}
	r := New(api)

	resp := <-r.Dispatch(context.Background(), Message{Type: MsgSaveMetrics, Data: json.RawMessage(`{"url":`)})

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "malformed save-metrics payload")
	api.AssertNotCalled(t, "CheckHealth", mock.Anything)
}
