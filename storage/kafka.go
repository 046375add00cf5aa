package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * dvid.Kilo

// DefaultKafkaTopic is used when no topic is configured.
const DefaultKafkaTopic = "trainlabels"

// KafkaConfig is the [kafka] section of a configuration.
type KafkaConfig struct {
	Servers []string `toml:"servers"`
	Topic   string   `toml:"topic"`
}

// Available returns true if Kafka servers are configured.
func (kc KafkaConfig) Available() bool {
	return len(kc.Servers) != 0
}

// NewNotifier connects a synchronous producer to the configured servers.  It
// returns a nil Notifier if no servers are configured.
func (kc KafkaConfig) NewNotifier() (*Notifier, error) {
	if !kc.Available() {
		dvid.Infof("No Kafka server specified.\n")
		return nil, nil
	}
	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(kc.Servers, config)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to kafka cluster %v: %v", kc.Servers, err)
	}
	topic := kc.Topic
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	dvid.Infof("Kafka topic for sample events: %s\n", topic)
	return NewNotifier(producer, topic), nil
}

// Notifier publishes sample store events to a Kafka topic.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewNotifier returns a notifier that sends to topic through producer.
func NewNotifier(producer sarama.SyncProducer, topic string) *Notifier {
	return &Notifier{producer: producer, topic: topic}
}

// Event is the JSON message sent for each store mutation.
type Event struct {
	Action string   `json:"action"`
	ID     string   `json:"id"`
	Keys   []string `json:"keys,omitempty"`
	Time   string   `json:"time"`
}

// Notify sends an event keyed by sample ID.
func (n *Notifier) Notify(e Event) error {
	if e.Time == "" {
		e.Time = time.Now().Format(time.RFC3339)
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(e.ID),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("cannot produce message to %s: %v", n.topic, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (n *Notifier) Close() error {
	if err := n.producer.Close(); err != nil {
		dvid.Errorf("Kafka producer had error on close: %v\n", err)
		return err
	}
	dvid.Infof("Successfully shut down kafka producer.\n")
	return nil
}

// WithNotifier returns a store that publishes an event after each successful
// put or delete.  Failed notifications are logged but don't fail the store
// operation.  A nil notifier returns the store unchanged.
func WithNotifier(store SampleStore, n *Notifier) SampleStore {
	if n == nil {
		return store
	}
	return &notifyingStore{SampleStore: store, notifier: n}
}

type notifyingStore struct {
	SampleStore
	notifier *Notifier
}

func (ns *notifyingStore) String() string {
	return fmt.Sprintf("%s with kafka topic %s", ns.SampleStore, ns.notifier.topic)
}

func (ns *notifyingStore) PutSample(ctx context.Context, s *sample.Sample) error {
	if err := ns.SampleStore.PutSample(ctx, s); err != nil {
		return err
	}
	if err := ns.notifier.Notify(Event{Action: "put", ID: s.ID, Keys: s.Keys()}); err != nil {
		dvid.Errorf("unable to publish put of sample %s: %v\n", s.ID, err)
	}
	return nil
}

func (ns *notifyingStore) DeleteSample(ctx context.Context, id string) error {
	if err := ns.SampleStore.DeleteSample(ctx, id); err != nil {
		return err
	}
	if err := ns.notifier.Notify(Event{Action: "delete", ID: id}); err != nil {
		dvid.Errorf("unable to publish delete of sample %s: %v\n", id, err)
	}
	return nil
}

func (ns *notifyingStore) Close() error {
	err := ns.SampleStore.Close()
	if nerr := ns.notifier.Close(); err == nil {
		err = nerr
	}
	return err
}
