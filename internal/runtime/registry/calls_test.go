package registry

import (
	"context"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/queueflow/internal/runtime/config"
	qerrors "github.com/drblury/queueflow/internal/runtime/errors"
	"github.com/drblury/queueflow/internal/runtime/events"
	"github.com/drblury/queueflow/internal/runtime/transport"
)

func ordersQueue(t *testing.T) *Queue {
	t.Helper()
	reg, err := Build(Normalize(config.QueueSet{{Logical: "orders", Name: "orders-q"}}), defaultEndpoints())
	require.NoError(t, err)
	q, err := reg.Get("orders")
	require.NoError(t, err)
	return q
}

func TestCallsRoundTripEmitsEvents(t *testing.T) {
	q := ordersQueue(t)
	bus := events.NewBus()
	var finished []events.CallInfo
	bus.Register(events.Observer{OnFinish: func(info events.CallInfo) { finished = append(finished, info) }})
	calls := Calls{Bus: bus}

	out, err := calls.Send(context.Background(), q, q.Client(), transport.SendInput{Body: `{"id":1}`})
	require.NoError(t, err)
	assert.NotEmpty(t, out.MessageID)

	msgs, err := calls.Receive(context.Background(), q, q.Client(), transport.ReceiveInput{MaxMessages: 1}, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, calls.Delete(context.Background(), q, q.Client(), msgs[0], 2))

	require.Len(t, finished, 3)
	assert.Equal(t, events.OpSend, finished[0].Operation)
	assert.Equal(t, events.OpReceive, finished[1].Operation)
	assert.Equal(t, 2, finished[1].Reader)
	assert.Equal(t, events.OpDelete, finished[2].Operation)
	assert.Equal(t, msgs[0].ID, finished[2].MessageID)
	for _, info := range finished {
		assert.Equal(t, "orders", info.Queue)
	}
}

func TestCallsWrapAndClassifyErrors(t *testing.T) {
	q := ordersQueue(t)
	mem := q.Client().(*transport.Memory)
	mem.FailNext(transport.MemoryReceive, &smithy.GenericAPIError{Code: "ExpiredToken"})

	bus := events.NewBus()
	var failed []events.CallInfo
	bus.Register(events.Observer{OnError: func(info events.CallInfo) { failed = append(failed, info) }})

	_, err := Calls{Bus: bus}.Receive(context.Background(), q, mem, transport.ReceiveInput{}, 1)
	var terr *qerrors.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, qerrors.TransportReconnect, terr.Class)
	assert.Equal(t, events.OpReceive, terr.Operation)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, err)
}

func TestCallsCustomClassifier(t *testing.T) {
	q := ordersQueue(t)
	mem := q.Client().(*transport.Memory)
	mem.FailNext(transport.MemorySend, assert.AnError)

	calls := Calls{Classify: func(error) qerrors.TransportClass { return qerrors.TransportFatal }}
	_, err := calls.Send(context.Background(), q, mem, transport.SendInput{Body: "x"})
	var terr *qerrors.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, qerrors.TransportFatal, terr.Class)
}

func TestCallsWithoutClient(t *testing.T) {
	q := ordersQueue(t)

	_, err := Calls{}.Send(context.Background(), q, nil, transport.SendInput{})
	assert.ErrorIs(t, err, qerrors.ErrTransportRequired)
	_, err = Calls{}.Receive(context.Background(), q, nil, transport.ReceiveInput{}, 0)
	assert.ErrorIs(t, err, qerrors.ErrTransportRequired)
	assert.ErrorIs(t, Calls{}.Delete(context.Background(), q, nil, transport.Message{}, 0), qerrors.ErrTransportRequired)
}
