//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/kafka"
	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/sqlite"
	"github.com/couchcryptid/maternal-heat-risk/internal/config"
	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	"github.com/couchcryptid/maternal-heat-risk/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-patient-records"
	testSinkTopic   = "test-risk-assessments"
)

// assessedMessage holds a deserialized message read from the sink topic.
type assessedMessage struct {
	Event   domain.AssessmentEvent
	Key     string
	Headers map[string]string
}

func readAssessed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) assessedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.AssessmentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

	return assessedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func patientPayload(t *testing.T, p domain.Patient) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return b
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

var (
	inBand  = true
	outBand = false

	testPatients = []domain.Patient{
		{ID: 1, Name: "Maria Garcia", Age: 32, PregnancyICD10: "O24.4", ComorbidityICD10: "I10",
			WeeksPregnant: 30, ZipCode: "85001", Medications: "Insulin;Labetalol", Between17And35: &inBand},
		{ID: 2, Name: "Lena Park", Age: 25, WeeksPregnant: 16, ZipCode: "85004"},
		{ID: 3, Name: "Rosa Vega", Age: 40, ComorbidityICD10: "E66.0", WeeksPregnant: 8,
			ZipCode: "85004", Medications: "Levothyroxine", Between17And35: &outBand},
	}
)

// TestKafkaReaderWriter verifies kafka.Reader and kafka.Writer round-trip a
// patient record and its assessment through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	payload := patientPayload(t, testPatients[0])
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{Key: []byte("1"), Value: payload}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawRecord
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("1"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	assessor := pipeline.NewAssessor(domain.OfflineProvider{}, observability.NewMetricsForTesting(), discardLogger())
	event, err := assessor.Assess(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.AssessmentEvent{event}))

	am := readAssessed(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "1", am.Key)
	assert.Equal(t, "high", am.Headers["risk_level"])
	assert.Equal(t, "false", am.Headers["heat_wave"])
	_, err = time.Parse(time.RFC3339, am.Headers["assessed_at"])
	assert.NoError(t, err, "assessed_at should be valid RFC3339")

	assert.Equal(t, "Maria Garcia", am.Event.PatientName)
	assert.Equal(t, domain.LevelHigh, am.Event.Assessment.RiskLevel)
	assert.Equal(t, 3, am.Event.Assessment.Trimester)
}

// TestPipelineEndToEnd wires Reader, RiskAssessor and a fan-out of Writer and
// the sqlite history store, and verifies every record is assessed once.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	msgs := make([]kafkago.Message, 0, len(testPatients))
	for _, p := range testPatients {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(strconv.FormatInt(p.ID, 10)),
			Value: patientPayload(t, p),
		})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "history.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	for _, p := range testPatients {
		_, err := store.CreatePatient(ctx, p)
		require.NoError(t, err)
	}

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	loader := pipeline.FanOut{writer, pipeline.NewHistoryLoader(store, discardLogger())}
	p := pipeline.New(reader, pipeline.NewAssessor(domain.OfflineProvider{}, metrics, discardLogger()), loader, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	levels := map[string]domain.Level{}
	for len(levels) < len(testPatients) {
		am := readAssessed(ctx, t, consumer)
		levels[am.Key] = am.Event.Assessment.RiskLevel
		assert.Equal(t, string(am.Event.Assessment.RiskLevel), am.Headers["risk_level"])
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	assert.Equal(t, map[string]domain.Level{
		"1": domain.LevelHigh,
		"2": domain.LevelLow,
		"3": domain.LevelMedium,
	}, levels)

	for _, patient := range testPatients {
		history, err := store.AssessmentHistory(ctx, patient.ID)
		require.NoError(t, err)
		require.Len(t, history, 1, "patient %d", patient.ID)
		assert.Equal(t, levels[strconv.FormatInt(patient.ID, 10)], history[0].RiskLevel)
	}
	require.NoError(t, p.CheckReadiness(ctx))
}

// TestPipelineInvalidRecord verifies that an invalid record (poison pill) is
// skipped and the pipeline continues with valid records.
func TestPipelineInvalidRecord(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("invalid"), Value: []byte(`{"id":9,"name":"Too Old","age":90,"zip_code":"85001"}`)},
		kafkago.Message{Key: []byte("2"), Value: patientPayload(t, testPatients[1])},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, pipeline.NewAssessor(nil, metrics, discardLogger()), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	am := readAssessed(ctx, t, consumer)
	assert.Equal(t, "2", am.Key)
	assert.Equal(t, "Lena Park", am.Event.PatientName)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
