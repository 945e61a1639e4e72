package events

import (
	"encoding/json"
	"time"

	"github.com/tiplinehq/tipline/pkg/infra"
	"github.com/tiplinehq/tipline/pkg/model"
)

type PayoutEvent struct {
	Type      string `json:"type"`
	Chain     string `json:"chain"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type Emitter interface {
	EmitRecord(chain string, rec *model.TransactionRecord) error
	EmitError(chain string, err error) error
	Emit(event PayoutEvent) error
	Close()
}

type emitter struct {
	queue         infra.MessageQueue
	subjectPrefix string
}

func NewEmitter(queue infra.MessageQueue, subjectPrefix string) Emitter {
	return &emitter{
		queue:         queue,
		subjectPrefix: subjectPrefix,
	}
}

// EmitRecord publishes a ledger outcome. The source event id doubles as the
// message idempotency key, so a replayed cycle cannot produce a second
// downstream notification.
func (e *emitter) EmitRecord(chain string, rec *model.TransactionRecord) error {
	data, err := json.Marshal(PayoutEvent{
		Type:      "record",
		Chain:     chain,
		Data:      rec,
		Timestamp: time.Now().UTC().Unix(),
	})
	if err != nil {
		return err
	}
	return e.queue.Enqueue(e.subjectPrefix, data, &infra.EnqueueOptions{
		IdempotentKey: rec.SourceEventID,
	})
}

func (e *emitter) EmitError(chain string, err error) error {
	payload := map[string]string{}
	if err != nil {
		payload["message"] = err.Error()
	}

	return e.Emit(PayoutEvent{
		Type:      "error",
		Chain:     chain,
		Data:      payload,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *emitter) Emit(event PayoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.queue.Enqueue(e.subjectPrefix, data, nil)
}

func (e *emitter) Close() {
	if e.queue != nil {
		e.queue.Close()
	}
}
