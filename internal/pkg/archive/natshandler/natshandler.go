/*
natshandler.go Publishes session events onto a NATS subject tree so external
dashboards can follow a build session live. Fire and forget; the session is
never blocked on the stream.
*/

package natshandler

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/msg"
)

// Subjects per topic.
const (
	SubjectStage   = "gridstage.stage"
	SubjectBalance = "gridstage.balance"
	SubjectResult  = "gridstage.result"
)

// Config holds the stream endpoint.
type Config struct {
	Server string
}

// Handler forwards session events to NATS.
type Handler struct {
	mux    *sync.Mutex
	pid    uuid.UUID
	inbox  chan msg.Msg
	config Config
	logger *zap.Logger
	stop   chan bool
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes to the publisher's event topics and returns a handler ready
// to Process.
func New(cfg Config, publisher msg.Publisher, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pid, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	inbox := make(chan msg.Msg, 50)
	for _, topic := range []msg.Topic{msg.Stage, msg.Balance, msg.Result} {
		ch, err := publisher.Subscribe(pid, topic)
		if err != nil {
			return nil, err
		}
		go redirectMsg(ch, inbox)
	}

	return &Handler{
		mux:    &sync.Mutex{},
		pid:    pid,
		inbox:  inbox,
		config: cfg,
		logger: logger.Named("nats"),
		stop:   make(chan bool, 1),
	}, nil
}

// PID is an accessor for the handler's process id.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// StopProcess terminates the publish loop.
func (h *Handler) StopProcess() {
	h.stop <- true
}

// Process connects to the NATS server and forwards events until stopped.
func (h *Handler) Process() {
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		h.logger.Error("connect failed", zap.Error(err))
		return
	}
	defer nc.Drain()

loop:
	for {
		select {
		case m := <-h.inbox:
			subject := subjectFor(m.Topic())
			if subject == "" {
				continue
			}
			payload, err := json.Marshal(m.Payload())
			if err != nil {
				h.logger.Error("marshal failed", zap.Error(err))
				continue
			}
			if err := nc.Publish(subject, payload); err != nil {
				h.logger.Error("publish failed",
					zap.String("subject", subject),
					zap.Error(err))
			}
		case <-h.stop:
			break loop
		}
	}
	h.logger.Info("publish loop stopped")
}

func subjectFor(t msg.Topic) string {
	switch t {
	case msg.Stage:
		return SubjectStage
	case msg.Balance:
		return SubjectBalance
	case msg.Result:
		return SubjectResult
	}
	return ""
}
