// Package corrections is the append-only audit log of every resolution
// decision, including repeated application of a cached decision.
package corrections

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Skipped is recorded in place of a catalog reference when the operator
// skipped the product.
const Skipped = "(skipped)"

// Missing is recorded when the platform carried no reference at all.
const Missing = "(missing)"

// Actions recorded with a correction, matching what downstream review
// expects.
const (
	ActionUpdateSKU = "Update SKU in Shopify"
	ActionSkipped   = "SKIPPED - Order line will not be imported"
)

// Correction is one audit record.
type Correction struct {
	OrderKey    string `json:"orderKey"`
	Description string `json:"description"`
	OriginalSKU string `json:"originalSku"`
	ResolvedSKU string `json:"resolvedSku"`
	Action      string `json:"action"`
	TS          int64  `json:"ts"`
}

type Writer interface {
	Append(c Correction) error
}

// MultiWriter fans out writes to multiple underlying writers.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

func (m *MultiWriter) Append(c Correction) error {
	for _, w := range m.writers {
		if err := w.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// Recorder accumulates corrections in memory during the run. Nothing is
// flushed to a sink before the run reaches a terminal state.
type Recorder struct {
	recs []Correction
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Add(c Correction) {
	if c.TS == 0 {
		c.TS = time.Now().UTC().Unix()
	}
	r.recs = append(r.recs, c)
}

func (r *Recorder) All() []Correction { return r.recs }
func (r *Recorder) Len() int          { return len(r.recs) }

// Flush replays every recorded correction into a sink.
func (r *Recorder) Flush(w Writer) error {
	for _, c := range r.recs {
		if err := w.Append(c); err != nil {
			return fmt.Errorf("flush correction: %w", err)
		}
	}
	return nil
}

// CSVWriter appends corrections to a CSV file in the format downstream
// review expects.
type CSVWriter struct {
	path string
}

var csvHeader = []string{"Order", "Product Name", "Shopify SKU", "Corrected to Odoo SKU", "Action"}

func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &CSVWriter{path: path}, nil
}

func (w *CSVWriter) Append(c Correction) error {
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if err := cw.Write([]string{c.OrderKey, c.Description, c.OriginalSKU, c.ResolvedSKU, c.Action}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// KafkaWriter publishes corrections to a Kafka topic, keyed by order so all
// corrections of one order land on one partition. Pure-Go client
// (segmentio/kafka-go).
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter creates a Kafka writer.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaWriter(bootstrap string, topic string) *KafkaWriter {
	addrs := strings.Split(bootstrap, ",")
	var brokers []string
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (k *KafkaWriter) Append(c Correction) error {
	b, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(
		context.Background(),
		kafka.Message{Key: []byte(c.OrderKey), Value: b},
	)
}

// NewKafkaWriterWith is only for tests to inject a fake writer.
func NewKafkaWriterWith(w kafkaMessageWriter) *KafkaWriter {
	return &KafkaWriter{writer: w}
}
