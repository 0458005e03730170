// Package alerts raises operational notifications over webhook
// channels, with a per-event cooldown so flapping conditions do not
// flood the destination.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/logging"
	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/metrics"
)

// Kind identifies the condition an event reports.
type Kind string

const (
	KindLowBalance          Kind = "low_balance"
	KindAggregationTimeout  Kind = "aggregation_timeout"
	KindUpdateTimeout       Kind = "update_timeout"
	KindInsufficientSources Kind = "insufficient_sources"
	KindSubmissionFailed    Kind = "submission_failed"
	KindRewardCollection    Kind = "reward_collection"
)

// Severity grades an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a single operational notification.
type Event struct {
	Kind     Kind
	Severity Severity
	Feed     string
	Message  string
	At       time.Time
}

// Text renders the event as a one-line message for chat channels.
func (e Event) Text() string {
	return fmt.Sprintf("[%s] %s %s: %s", e.Severity, e.Feed, e.Kind, e.Message)
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Name() string
}

// Manager fans events out to the configured notifiers. Repeated events
// of the same kind for the same feed are suppressed until the cooldown
// period has passed.
type Manager struct {
	notifiers []Notifier
	cooldown  time.Duration
	logger    *logging.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewManager creates an alert manager. A nil or empty notifier list is
// valid and turns the manager into a log-only sink.
func NewManager(cooldown time.Duration, notifiers []Notifier, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Manager{
		notifiers: notifiers,
		cooldown:  cooldown,
		logger:    logger,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Emit sends the event to every notifier unless an event with the same
// kind and feed was sent within the cooldown window. Delivery failures
// are logged, never returned: alerting must not fail the caller.
func (m *Manager) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = m.now().UTC()
	}
	if !m.shouldSend(event) {
		m.logger.Debug("Alert suppressed by cooldown",
			"kind", string(event.Kind),
			"feed", event.Feed)
		return
	}

	metrics.RecordAlert(string(event.Kind))
	m.logger.Warn("Alert raised",
		"kind", string(event.Kind),
		"severity", string(event.Severity),
		"feed", event.Feed,
		"message", event.Message)

	delivered := 0
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			m.logger.Error("Alert delivery failed",
				"channel", n.Name(),
				"kind", string(event.Kind),
				"error", err.Error())
			continue
		}
		delivered++
	}
	// Only a delivered alert starts the cooldown. When every channel
	// fails the next occurrence retries instead of going silent.
	if delivered > 0 || len(m.notifiers) == 0 {
		m.markSent(event)
	}
}

func (m *Manager) cooldownKey(event Event) string {
	return string(event.Kind) + "/" + event.Feed
}

func (m *Manager) shouldSend(event Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, seen := m.lastSent[m.cooldownKey(event)]
	return !seen || m.now().Sub(last) >= m.cooldown
}

func (m *Manager) markSent(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSent[m.cooldownKey(event)] = m.now()
}
