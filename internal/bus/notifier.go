package bus

import (
	"log/slog"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// Publisher is the part of Client the notifier needs.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// LifecycleNotifier publishes lifecycle events to "<subject>.lifecycle" and
// results to subject. Publish failures are logged, never returned.
type LifecycleNotifier struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

func NewLifecycleNotifier(pub Publisher, subject string, logger *slog.Logger) *LifecycleNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleNotifier{pub: pub, subject: subject, logger: logger}
}

func (n *LifecycleNotifier) Notify(event schema.IngestLifecycleEvent) {
	if err := n.pub.PublishJSON(n.subject+".lifecycle", event); err != nil {
		n.logger.Error("publish lifecycle event failed", "subject", n.subject, "stage", event.Stage, "err", err)
	}
}

func (n *LifecycleNotifier) Done(done schema.IngestDone) {
	if err := n.pub.PublishJSON(n.subject, done); err != nil {
		n.logger.Error("publish result failed", "subject", n.subject, "id", done.ID, "err", err)
	}
}
