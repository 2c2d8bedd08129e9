package dlq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Sending far past the channel buffer must never stall: the producer's
// result channels are drained internally, so Input() always keeps up.
func TestSend_NonBlockingWithoutResultConsumer(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	mock := mocks.NewAsyncProducer(t, cfg)
	const total = 600 // well beyond the default ChannelBufferSize of 256
	for i := 0; i < total; i++ {
		mock.ExpectInputAndSucceed()
	}

	producer := newDLQProducer(mock, discardLogger(), "ledger-transitions-dlq", "ledger-transitions")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cause := errors.New("batch save failed")
	for i := 0; i < total; i++ {
		require.NoError(t, producer.Send(ctx, []byte(`{"purchase_id":"p-1"}`), cause))
	}

	require.NoError(t, producer.Close())
}
