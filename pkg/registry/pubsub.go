package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// snapshotSubject is the single internal subject every Snapshot update is
// published to and every subscriber listens on. One Registry owns one
// embedded NATS server; the subject never needs to be unique per instance.
const snapshotSubject = "phaneron.registry.snapshot"

// snapshotBus carries Snapshot broadcasts over an embedded, in-process
// NATS server, the way the teacher's pubsub.Nats wraps nats-server/nats.go
// for its own pub/sub traffic (pubsub/nats.go). Unlike the teacher's use
// (cross-process messaging over a real listener), this bus exists purely
// to get the "latest-value, slow subscribers drop stale snapshots"
// semantics spec.md §4.G asks for: each Subscribe call layers a
// non-blocking, size-1 overwrite queue on top of the NATS delivery
// callback, mirroring the original's tokio::sync::broadcast::channel(1)
// per subscriber ("Only the latest value is relevant").
type snapshotBus struct {
	srv  *server.Server
	conn *nats.Conn
}

func newSnapshotBus() (*snapshotBus, error) {
	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		NoLog:     true,
		NoSigs:    true,
		JetStream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: failed to create embedded nats server: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(2 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("registry: embedded nats server did not become ready")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("registry: failed to connect to embedded nats server: %w", err)
	}

	return &snapshotBus{srv: srv, conn: conn}, nil
}

func (b *snapshotBus) publish(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("registry: failed to marshal snapshot: %w", err)
	}
	return b.conn.Publish(snapshotSubject, data)
}

// subscribe returns a channel that always holds the most recently
// published Snapshot, a Subscription's Unsubscribe whose caller reclaims
// it, and any subscribe-time error.
func (b *snapshotBus) subscribe() (<-chan Snapshot, *nats.Subscription, error) {
	out := make(chan Snapshot, 1)
	sub, err := b.conn.Subscribe(snapshotSubject, func(msg *nats.Msg) {
		var snap Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			return
		}
		// Drain a stale pending value (if the subscriber hasn't caught up
		// yet) before pushing the new one, so out always holds at most one
		// value: the latest.
		select {
		case <-out:
		default:
		}
		select {
		case out <- snap:
		default:
		}
	})
	if err != nil {
		close(out)
		return nil, nil, fmt.Errorf("registry: failed to subscribe to snapshot subject: %w", err)
	}
	return out, sub, nil
}

func (b *snapshotBus) close() {
	b.conn.Close()
	b.srv.Shutdown()
}
