package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/qiufen/pkg/mockgen"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	ctx  context.Context
}

func dial(t *testing.T, srv *httptest.Server, protocol string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{protocol}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	require.Equal(t, protocol, conn.Subprotocol())
	return &wsClient{t: t, conn: conn, ctx: ctx}
}

func (c *wsClient) send(msg wsMessage) {
	c.t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, data))
}

func (c *wsClient) read() wsMessage {
	c.t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)
	var msg wsMessage
	require.NoError(c.t, json.Unmarshal(data, &msg))
	return msg
}

func subscribePayload(t *testing.T, query string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(Request{Query: query})
	require.NoError(t, err)
	return b
}

func newSubscriptionServer(t *testing.T, stream StreamConfig, opts ...mockgen.Option) (*httptest.Server, *SubscriptionHandler, *metrics) {
	t.Helper()
	exec := newTestExecutor(t, nil, opts...)
	m := newMetrics()
	subs := NewSubscriptionHandler(exec, stream, m, exec.log)
	srv := httptest.NewServer(NewHandler(exec, subs, m, exec.log))
	t.Cleanup(srv.Close)
	return srv, subs, m
}

func TestSubscription_TransportWS(t *testing.T) {
	srv, _, m := newSubscriptionServer(t, StreamConfig{Events: 3, Interval: 5 * time.Millisecond}, mockgen.WithSeed(1))
	c := dial(t, srv, ProtocolTransportWS)

	c.send(wsMessage{Type: msgConnectionInit})
	assert.Equal(t, msgConnectionAck, c.read().Type)

	c.send(wsMessage{Type: msgPing})
	assert.Equal(t, msgPong, c.read().Type)

	c.send(wsMessage{ID: "1", Type: msgSubscribe, Payload: subscribePayload(t, `subscription { userChanged { id name } }`)})

	var payloads []string
	for i := 0; i < 3; i++ {
		msg := c.read()
		require.Equal(t, msgNext, msg.Type)
		assert.Equal(t, "1", msg.ID)

		var resp Response
		require.NoError(t, json.Unmarshal(msg.Payload, &resp))
		assert.Empty(t, resp.Errors)
		user := resp.Data.(map[string]interface{})["userChanged"].(map[string]interface{})
		assert.Contains(t, user, "id")
		payloads = append(payloads, string(msg.Payload))
	}
	assert.NotEqual(t, payloads[0], payloads[1], "seeded events vary")

	done := c.read()
	assert.Equal(t, msgComplete, done.Type)
	assert.Equal(t, "1", done.ID)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.activeSubscriptions) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSubscription_LegacyProtocol(t *testing.T) {
	srv, _, _ := newSubscriptionServer(t, StreamConfig{Events: 1})
	c := dial(t, srv, ProtocolLegacyWS)

	c.send(wsMessage{Type: msgConnectionInit})
	assert.Equal(t, msgConnectionAck, c.read().Type)
	assert.Equal(t, msgKeepAlive, c.read().Type)

	c.send(wsMessage{ID: "a", Type: msgStart, Payload: subscribePayload(t, `subscription { userChanged { name } }`)})
	msg := c.read()
	assert.Equal(t, msgData, msg.Type)
	assert.JSONEq(t, `{"data":{"userChanged":{"name":"Hello World"}}}`, string(msg.Payload))
	assert.Equal(t, msgComplete, c.read().Type)
}

func TestSubscription_Errors(t *testing.T) {
	srv, _, _ := newSubscriptionServer(t, StreamConfig{Events: 1})
	c := dial(t, srv, ProtocolTransportWS)
	c.send(wsMessage{Type: msgConnectionInit})
	c.read()

	c.send(wsMessage{ID: "bad", Type: msgSubscribe, Payload: subscribePayload(t, `subscription {`)})
	msg := c.read()
	assert.Equal(t, msgError, msg.Type)
	assert.Equal(t, "bad", msg.ID)
	var errs []Error
	require.NoError(t, json.Unmarshal(msg.Payload, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, CodeParseFailed, errs[0].Extensions["code"])

	c.send(wsMessage{Type: msgSubscribe, Payload: subscribePayload(t, `subscription { userChanged { id } }`)})
	assert.Equal(t, msgError, c.read().Type)
}

func TestSubscription_StopCancelsStream(t *testing.T) {
	srv, subs, m := newSubscriptionServer(t, StreamConfig{Events: 100, Interval: 20 * time.Millisecond})
	c := dial(t, srv, ProtocolTransportWS)
	c.send(wsMessage{Type: msgConnectionInit})
	c.read()

	c.send(wsMessage{ID: "s", Type: msgSubscribe, Payload: subscribePayload(t, `subscription { userChanged { id } }`)})
	assert.Equal(t, msgNext, c.read().Type)
	assert.Equal(t, 1, subs.ConnectionCount())

	c.send(wsMessage{ID: "s", Type: msgComplete})
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.activeSubscriptions) == 0
	}, time.Second, 10*time.Millisecond)

	go subs.CloseAll("test done")
	for {
		if _, _, err := c.conn.Read(c.ctx); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return subs.ConnectionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSubscription_QueryOverSocket(t *testing.T) {
	srv, _, _ := newSubscriptionServer(t, StreamConfig{Events: 5})
	c := dial(t, srv, ProtocolTransportWS)
	c.send(wsMessage{Type: msgConnectionInit})
	c.read()

	c.send(wsMessage{ID: "q", Type: msgSubscribe, Payload: subscribePayload(t, `{ hello }`)})
	msg := c.read()
	assert.Equal(t, msgNext, msg.Type)
	assert.JSONEq(t, `{"data":{"hello":"Hello World"}}`, string(msg.Payload))
	assert.Equal(t, msgComplete, c.read().Type)
}

func TestSubscription_PostReturnsSinglePayload(t *testing.T) {
	srv, _, _ := newSubscriptionServer(t, StreamConfig{Events: 3})

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"query":"subscription { userChanged { name } }"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Errors)
	assert.Equal(t, map[string]interface{}{"userChanged": map[string]interface{}{"name": "Hello World"}}, out.Data)
}
