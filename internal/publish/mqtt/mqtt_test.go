package mqtt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/skyfleet/missionctl/internal/catalog"
	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/controller"
	"github.com/skyfleet/missionctl/internal/dispatcher"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	published  []published
	subscribed []string
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, topic)
	return doneToken{}
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "missions/m-1/state", StateTopic("missions", "m-1"))
	assert.Equal(t, "fleet/+/command", CommandFilter("fleet"))

	id, ok := MissionFromCommandTopic("fleet", "fleet/m-1/command")
	assert.True(t, ok)
	assert.Equal(t, "m-1", id)

	for _, topic := range []string{"fleet/m-1/state", "other/m-1/command", "fleet//command", "fleet/a/b/command"} {
		_, ok := MissionFromCommandTopic("fleet", topic)
		assert.False(t, ok, topic)
	}
}

func TestEncoderFor(t *testing.T) {
	msg := Telemetry{MissionID: "m-1", Progress: 42.5, Location: geo.GeoPosition{Longitude: 24.9}}

	enc, err := EncoderFor("")
	require.NoError(t, err)
	b, err := enc(msg)
	require.NoError(t, err)
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(b, &fromJSON))
	assert.Equal(t, "m-1", fromJSON["mission_id"])

	enc, err = EncoderFor("MsgPack")
	require.NoError(t, err)
	b, err = enc(msg)
	require.NoError(t, err)
	var fromMsgpack Telemetry
	require.NoError(t, msgpack.Unmarshal(b, &fromMsgpack))
	assert.Equal(t, msg, fromMsgpack)

	_, err = EncoderFor("xml")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestNewTelemetry(t *testing.T) {
	g := geo.NewGeoreferencer(24.9384, 60.1699, 2)
	snap := core.Snapshot{
		MissionID: "m-1",
		RunID:     3,
		State:     core.ExecutionState{Status: core.StatusRunning, Progress: 50},
		Pattern:   core.PatternGrid,
		ProfileID: "mapping",
		Position:  core.Position{X: 0, Y: 0, Heading: -90},
		Phase:     core.Phase{Kind: core.PhaseExecuting},
		Time:      time.Unix(10, 0),
	}

	msg := NewTelemetry(snap, g, 80)
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "running", msg.Status)
	assert.Equal(t, int64(10_000_000), msg.Timestamp)
	assert.Equal(t, core.PhaseExecuting, msg.Phase)
	assert.InDelta(t, 24.9384, msg.Location.Longitude, 1e-6)
	assert.InDelta(t, 60.1699, msg.Location.Latitude, 1e-6)
	assert.Equal(t, 80.0, msg.Location.Altitude)
	assert.Equal(t, 270.0, msg.Location.Bearing)

	assert.NotEqual(t, msg.MessageID, NewTelemetry(snap, g, 80).MessageID)
}

func TestSignPassword_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	now := time.Now()
	pass, err := SignPassword(keyPEM, "fleet", now)
	require.NoError(t, err)

	claims := &jwt.StandardClaims{}
	_, err = jwt.ParseWithClaims(pass, claims, func(tok *jwt.Token) (interface{}, error) {
		assert.Equal(t, "RS256", tok.Method.Alg())
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fleet", claims.Audience)
	assert.Equal(t, now.Add(TokenTTL).Unix(), claims.ExpiresAt)
}

func TestSignPassword_EC(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	pass, err := SignPassword(keyPEM, "fleet", time.Now())
	require.NoError(t, err)

	_, err = jwt.Parse(pass, func(tok *jwt.Token) (interface{}, error) {
		assert.Equal(t, "ES256", tok.Method.Alg())
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
}

func TestSignPassword_BadKey(t *testing.T) {
	_, err := SignPassword([]byte("not a key"), "fleet", time.Now())
	assert.Error(t, err)

	_, err = PasswordFromKeyFile("/nonexistent/key.pem", "fleet", time.Now())
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Client: &fakeClient{}, Georeferencer: geo.NewGeoreferencer(0, 0, 1), Encoding: "xml"})
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestPublisher_PublishesAttachedMission(t *testing.T) {
	cat, err := catalog.Embedded()
	require.NoError(t, err)
	clk := clock.NewFake(time.Unix(0, 0))
	c, err := controller.New(controller.Options{
		ID:        "m-1",
		Clock:     clk,
		Catalog:   cat,
		Pattern:   core.PatternGrid,
		ProfileID: "mapping",
	})
	require.NoError(t, err)

	client := &fakeClient{}
	p, err := New(Options{
		Client:        client,
		TopicPrefix:   "fleet",
		Encoding:      EncodingJSON,
		Georeferencer: geo.NewGeoreferencer(24.9384, 60.1699, 2),
		Profiles:      cat,
	})
	require.NoError(t, err)

	p.Attach(c)
	require.NoError(t, c.Validate())

	// Initial snapshot plus the validating one.
	require.Eventually(t, func() bool { return p.backlog.Len() >= 2 }, time.Second, 5*time.Millisecond)
	p.Flush()

	msgs := client.messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	for _, m := range msgs {
		assert.Equal(t, "fleet/m-1/state", m.topic)
	}
	var last Telemetry
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].payload, &last))
	assert.Equal(t, "m-1", last.MissionID)
	assert.Equal(t, 80.0, last.Location.Altitude)

	c.Dispose()
	p.Wait()
}

func TestPublisher_HandleCommand(t *testing.T) {
	var got []dispatcher.Event
	p, err := New(Options{
		Client:        &fakeClient{},
		TopicPrefix:   "fleet",
		Georeferencer: geo.NewGeoreferencer(0, 0, 1),
		Dispatch: func(e dispatcher.Event) (any, error) {
			got = append(got, e)
			return nil, nil
		},
	})
	require.NoError(t, err)

	p.handleCommand("fleet/m-1/command", []byte(`{"action":"pattern","value":"orbit"}`))
	p.handleCommand("fleet/m-1/command", []byte(`{"action":"warp"}`))
	p.handleCommand("fleet/m-1/command", []byte(`garbage`))
	p.handleCommand("fleet/m-1/state", []byte(`{"action":"execute"}`))

	require.Len(t, got, 1)
	assert.Equal(t, ":PATTERN:", got[0].Command)
	assert.Equal(t, []string{"m-1", "orbit"}, got[0].Args)
	assert.Equal(t, "mqtt", got[0].Source)
}
