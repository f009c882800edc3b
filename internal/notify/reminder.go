package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/metrics"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// ExpiryEvent is the structured payload published for a document that is
// expiring soon or already expired and has not been renewed. Downstream
// consumers compose the actual reminder messages.
type ExpiryEvent struct {
	DocumentID    string              `json:"document_id"`
	OwnerID       string              `json:"owner_id"`
	DocumentType  models.DocumentType `json:"document_type"`
	VehicleNumber string              `json:"vehicle_number"`
	ValidTo       string              `json:"valid_to"`
	Status        models.Status       `json:"status"`
	AsOf          string              `json:"as_of"`
}

// Publisher abstracts the MQTT client for testing.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTPublisher publishes events over a paho MQTT connection.
type MQTTPublisher struct {
	Client mqtt.Client
}

// ConnectMQTT connects to the broker named by MQTT_BROKER.
func ConnectMQTT() (*MQTTPublisher, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = "tcp://mqtt:1883"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("fleet-compliance-reminder").
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return &MQTTPublisher{Client: client}, nil
}

// Publish sends a payload to the topic at QoS 1.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.Client.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}

// Reminder periodically scans the document store and publishes expiry events
// for documents that are renewable-but-not-renewed.
type Reminder struct {
	collection db.DocumentCollection
	publisher  Publisher
	topic      string
	interval   time.Duration
	metrics    *metrics.Metrics
}

// NewReminder creates a reminder scanner.
func NewReminder(collection db.DocumentCollection, publisher Publisher, topic string, interval time.Duration, m *metrics.Metrics) *Reminder {
	if topic == "" {
		topic = "compliance/expiry"
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Reminder{
		collection: collection,
		publisher:  publisher,
		topic:      topic,
		interval:   interval,
		metrics:    m,
	}
}

// Run scans on a fixed interval until the context is cancelled.
func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if count, err := r.Scan(ctx, dateutil.Today()); err != nil {
			log.WithError(err).Error("expiry scan failed")
		} else {
			log.WithField("expiring", count).Info("expiry scan complete")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan classifies every stored document against one as-of snapshot and
// publishes an event for each unrenewed document that is expiring soon or
// expired. It returns the number of events published.
func (r *Reminder) Scan(ctx context.Context, asOf time.Time) (int, error) {
	docs, err := r.collection.FindDocuments(ctx, db.DocumentQuery{})
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range docs {
		doc := &docs[i]
		if doc.IsRenewed {
			continue
		}
		rule, ok := models.RuleFor(doc.Type)
		if !ok || !rule.HasValidityWindow {
			continue
		}
		status, err := compliance.DeriveStatus(doc, asOf)
		if err != nil {
			log.WithError(err).WithField("document_id", doc.ID.Hex()).Warn("skipping document with bad validity window")
			continue
		}
		if status != models.StatusExpiringSoon && status != models.StatusExpired {
			continue
		}

		event := ExpiryEvent{
			DocumentID:    doc.ID.Hex(),
			OwnerID:       doc.OwnerID,
			DocumentType:  doc.Type,
			VehicleNumber: doc.VehicleNumber,
			ValidTo:       doc.ValidTo,
			Status:        status,
			AsOf:          dateutil.Format(asOf),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return count, err
		}
		if err := r.publisher.Publish(r.topic, payload); err != nil {
			return count, err
		}
		count++
	}

	if r.metrics != nil {
		r.metrics.SetExpiringDocuments(count)
	}
	return count, nil
}
