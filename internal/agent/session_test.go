package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backuphub/internal/models"
)

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestHandler(store Store, notifier Notifier, drainer QueueDrainer) (*Handler, *Registry) {
	reg := newTestRegistry()
	h := NewHandler(store, reg, notifier, drainer, zap.NewNop())
	h.now = func() time.Time { return fixedNow }
	return h, reg
}

func openSession(t *testing.T, h *Handler, store *mockStore, computerID uint64, ch Channel) *Session {
	t.Helper()
	store.On("FindAgentByCredential", mock.Anything, "tok").Return(computerID, true, nil).Once()
	store.On("UpdateComputerStatus", mock.Anything, computerID, models.ComputerOnline, fixedNow).Return(nil).Once()

	sess, err := h.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	h.Open(context.Background(), sess, ch)
	return sess
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	store := new(mockStore)
	h, _ := newTestHandler(store, nil, nil)

	_, err := h.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthentication)
	store.AssertNotCalled(t, "FindAgentByCredential", mock.Anything, mock.Anything)
}

func TestAuthenticate_UnknownToken(t *testing.T) {
	store := new(mockStore)
	store.On("FindAgentByCredential", mock.Anything, "nope").Return(uint64(0), false, nil)
	h, _ := newTestHandler(store, nil, nil)

	_, err := h.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestAuthenticate_StoreError(t *testing.T) {
	store := new(mockStore)
	store.On("FindAgentByCredential", mock.Anything, "tok").Return(uint64(0), false, errors.New("db down"))
	h, _ := newTestHandler(store, nil, nil)

	_, err := h.Authenticate(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestAuthenticate_Success(t *testing.T) {
	store := new(mockStore)
	store.On("FindAgentByCredential", mock.Anything, "tok").Return(uint64(42), true, nil)
	h, _ := newTestHandler(store, nil, nil)

	sess, err := h.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), sess.ComputerID)
	assert.Equal(t, "42", sess.AgentID)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StateConnecting, sess.State())
}

func TestOpen_RegistersMarksOnlineAndDrains(t *testing.T) {
	store := new(mockStore)
	drainer := new(mockDrainer)
	drainer.On("DrainQueued", mock.Anything, uint64(42)).Return().Once()
	h, reg := newTestHandler(store, nil, drainer)

	ch := &fakeChannel{}
	sess := openSession(t, h, store, 42, ch)

	assert.Equal(t, StateAuthenticated, sess.State())
	got, ok := reg.Get("42")
	require.True(t, ok)
	assert.Same(t, ch, got)
	store.AssertExpectations(t)
	drainer.AssertExpectations(t)
}

func TestHandleMessage_Heartbeat(t *testing.T) {
	store := new(mockStore)
	h, _ := newTestHandler(store, nil, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	store.On("TouchComputer", mock.Anything, uint64(42), fixedNow).Return(nil).Once()

	require.NoError(t, h.HandleMessage(context.Background(), sess, []byte(`{"action":"heartbeat"}`)))
	store.AssertExpectations(t)
}

func TestHandleMessage_JobSuccessNotifies(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)
	h, _ := newTestHandler(store, notifier, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	cfg := &models.NotificationConfig{TaskID: 5, TaskName: "Docs", WebhookURL: "https://discord.example/hook"}
	store.On("CompleteJob", mock.Anything, uint64(42), uint64(7), models.JobSuccess, "", fixedNow).Return(true, nil).Once()
	store.On("FindTaskNotificationConfig", mock.Anything, uint64(7)).Return(cfg, nil).Once()
	notifier.On("NotifyJobResult", mock.Anything, *cfg, models.JobSuccess, "").Return().Once()

	raw := []byte(`{"action":"update-job-status","jobId":"7","status":"success"}`)
	require.NoError(t, h.HandleMessage(context.Background(), sess, raw))

	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestHandleMessage_JobFailedWithoutWebhook(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)
	h, _ := newTestHandler(store, notifier, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	store.On("CompleteJob", mock.Anything, uint64(42), uint64(7), models.JobFailed, "disk full", fixedNow).Return(true, nil).Once()
	store.On("FindTaskNotificationConfig", mock.Anything, uint64(7)).Return(&models.NotificationConfig{TaskID: 5}, nil).Once()

	raw := []byte(`{"action":"update-job-status","jobId":"7","status":"failed","details":"disk full"}`)
	require.NoError(t, h.HandleMessage(context.Background(), sess, raw))

	store.AssertExpectations(t)
	notifier.AssertNotCalled(t, "NotifyJobResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_UpdateNotAppliedSkipsNotification(t *testing.T) {
	store := new(mockStore)
	notifier := new(mockNotifier)
	h, _ := newTestHandler(store, notifier, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	store.On("CompleteJob", mock.Anything, uint64(42), uint64(7), models.JobSuccess, "", fixedNow).Return(false, nil).Once()

	raw := []byte(`{"action":"update-job-status","jobId":"7","status":"success"}`)
	require.NoError(t, h.HandleMessage(context.Background(), sess, raw))

	store.AssertNotCalled(t, "FindTaskNotificationConfig", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "NotifyJobResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMessage_InvalidUpdatesIgnored(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"running status", `{"action":"update-job-status","jobId":"7","status":"running"}`},
		{"missing status", `{"action":"update-job-status","jobId":"7"}`},
		{"non numeric job id", `{"action":"update-job-status","jobId":"abc","status":"success"}`},
		{"missing job id", `{"action":"update-job-status","status":"failed"}`},
		{"unknown action", `{"action":"reboot"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			h, _ := newTestHandler(store, nil, nil)
			sess := openSession(t, h, store, 42, &fakeChannel{})

			require.NoError(t, h.HandleMessage(context.Background(), sess, []byte(tt.raw)))
			store.AssertNotCalled(t, "CompleteJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	store := new(mockStore)
	h, _ := newTestHandler(store, nil, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	err := h.HandleMessage(context.Background(), sess, []byte(`{not json`))
	var malformed *MalformedMessageError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, []byte(`{not json`), malformed.Raw)
}

func TestHandleMessage_BeforeOpenIgnored(t *testing.T) {
	store := new(mockStore)
	store.On("FindAgentByCredential", mock.Anything, "tok").Return(uint64(42), true, nil)
	h, _ := newTestHandler(store, nil, nil)

	sess, err := h.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), sess, []byte(`{"action":"heartbeat"}`)))
	store.AssertNotCalled(t, "TouchComputer", mock.Anything, mock.Anything, mock.Anything)
}

func TestClose_MarksOfflineOnce(t *testing.T) {
	store := new(mockStore)
	h, reg := newTestHandler(store, nil, nil)
	sess := openSession(t, h, store, 42, &fakeChannel{})

	store.On("UpdateComputerStatus", mock.Anything, uint64(42), models.ComputerOffline, fixedNow).Return(nil).Once()

	h.Close(context.Background(), sess)
	h.Close(context.Background(), sess)

	assert.Equal(t, StateClosed, sess.State())
	_, ok := reg.Get("42")
	assert.False(t, ok)
	store.AssertNumberOfCalls(t, "UpdateComputerStatus", 2)
	store.AssertExpectations(t)
}

func TestClose_SupersededSessionKeepsOnline(t *testing.T) {
	store := new(mockStore)
	h, reg := newTestHandler(store, nil, nil)

	oldCh := &fakeChannel{}
	newCh := &fakeChannel{}
	oldSess := openSession(t, h, store, 42, oldCh)
	newSess := openSession(t, h, store, 42, newCh)
	require.NotEqual(t, oldSess.ID, newSess.ID)

	h.Close(context.Background(), oldSess)

	got, ok := reg.Get("42")
	require.True(t, ok)
	assert.Same(t, newCh, got)
	store.AssertNotCalled(t, "UpdateComputerStatus", mock.Anything, uint64(42), models.ComputerOffline, mock.Anything)
}

func TestClose_UnopenedSessionIsNoop(t *testing.T) {
	store := new(mockStore)
	store.On("FindAgentByCredential", mock.Anything, "tok").Return(uint64(42), true, nil)
	h, _ := newTestHandler(store, nil, nil)

	sess, err := h.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	h.Close(context.Background(), sess)
	assert.Equal(t, StateClosed, sess.State())
	store.AssertNotCalled(t, "UpdateComputerStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestServe_ProcessesFramesAndClosesOnEOF(t *testing.T) {
	store := new(mockStore)
	h, reg := newTestHandler(store, nil, nil)

	store.On("FindAgentByCredential", mock.Anything, "tok").Return(uint64(42), true, nil)
	store.On("UpdateComputerStatus", mock.Anything, uint64(42), models.ComputerOnline, fixedNow).Return(nil).Once()
	store.On("TouchComputer", mock.Anything, uint64(42), fixedNow).Return(nil).Twice()
	store.On("UpdateComputerStatus", mock.Anything, uint64(42), models.ComputerOffline, fixedNow).Return(nil).Once()

	sess, err := h.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	conn := newFakeConn(`{"action":"heartbeat"}`, `garbage`, `{"action":"heartbeat"}`)
	h.Serve(context.Background(), sess, conn)

	assert.Equal(t, StateClosed, sess.State())
	_, ok := reg.Get("42")
	assert.False(t, ok)
	store.AssertExpectations(t)
}
