// Package mqtt streams speed recommendations and run summaries to the
// dashboard over MQTT. The feed is advisory: nothing here drives physical
// signage.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/model"
	"github.com/m30lab/flowtwin/infra/logger"
)

// Config defines the connection parameters of the Paho client.
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Broker      string `json:"broker" yaml:"broker"`
	ClientID    string `json:"client_id" yaml:"client_id"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `json:"qos" yaml:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "flowtwin"
	}
	if c.ClientID == "" {
		c.ClientID = "flowtwin-" + uuid.NewString()[:8]
	}
}

// Validate checks mandatory fields when the feed is enabled.
func (c Config) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("mqtt enabled without broker")
	}
	return nil
}

// Publisher is the outbound feed consumed by the dashboard.
type Publisher interface {
	PublishRecommendation(rec model.SpeedRecommendation) error
	PublishRunSummary(rec coremetrics.RunRecord) error
	Close()
}

// PahoPublisher implements Publisher using Eclipse Paho.
type PahoPublisher struct {
	cli    paho.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// NewPahoPublisher connects to the broker.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	cli := paho.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	return &PahoPublisher{cli: cli, prefix: cfg.TopicPrefix, qos: cfg.QoS, log: logger.New("mqtt")}, nil
}

type recommendationMsg struct {
	Timestamp time.Time `json:"timestamp"`
	SensorID  string    `json:"sensor_id"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Regime    string    `json:"regime"`
}

// PublishRecommendation emits one recommendation on
// <prefix>/recommendations/<sensor>.
func (p *PahoPublisher) PublishRecommendation(rec model.SpeedRecommendation) error {
	payload, err := json.Marshal(recommendationMsg{
		Timestamp: rec.Timestamp,
		SensorID:  rec.SensorID,
		SpeedKmh:  rec.SpeedKmh,
		Regime:    rec.Regime.String(),
	})
	if err != nil {
		return err
	}
	return p.publish(fmt.Sprintf("%s/recommendations/%s", p.prefix, rec.SensorID), payload)
}

type runSummaryMsg struct {
	RunID               string  `json:"run_id"`
	Scenario            string  `json:"scenario"`
	SensorID            string  `json:"sensor_id"`
	SpeedImprovementPct float64 `json:"speed_improvement_pct"`
	CongestedStepsReal  int     `json:"congested_steps_real"`
	CongestedStepsSim   int     `json:"congested_steps_sim"`
}

// PublishRunSummary emits the summary of a completed run on
// <prefix>/runs/<sensor>.
func (p *PahoPublisher) PublishRunSummary(rec coremetrics.RunRecord) error {
	payload, err := json.Marshal(runSummaryMsg{
		RunID:               rec.RunID,
		Scenario:            rec.Scenario,
		SensorID:            rec.SensorID,
		SpeedImprovementPct: rec.SpeedImprovementPct,
		CongestedStepsReal:  rec.CongestedStepsReal,
		CongestedStepsSim:   rec.CongestedStepsSim,
	})
	if err != nil {
		return err
	}
	return p.publish(fmt.Sprintf("%s/runs/%s", p.prefix, rec.SensorID), payload)
}

func (p *PahoPublisher) publish(topic string, payload []byte) error {
	tok := p.cli.Publish(topic, p.qos, false, payload)
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return tok.Error()
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() {
	p.cli.Disconnect(250)
}
