package station

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chargeset/internal"
	"chargeset/internal/config"
	"chargeset/ocpp"
	"chargeset/types"
	"chargeset/utility"
)

const (
	callTimeout      = 30 * time.Second
	stationModel     = "ChargeSet Agent"
	stationVendor    = "ChargeSet"
	triggerStarted   = "Authorized"
	triggerEnded     = "ChargingTimeEnded"
	stopReasonEnergy = "EnergyLimitReached"
)

type pendingCall struct {
	payload []byte
	err     error
}

// Client is the station side of the central system connection. Calls are
// multiplexed over one websocket; each request is matched to its result by
// the unique message id.
type Client struct {
	conn      *websocket.Conn
	stationId string
	logger    internal.LogHandler

	writeMutex sync.Mutex
	mutex      sync.Mutex
	pending    map[string]chan pendingCall

	done      chan struct{}
	closeOnce sync.Once
}

// Connect dials the central system and starts the reader loop. The server
// must confirm the expected subprotocol or the connection is rejected.
func Connect(conf *config.Config, logger internal.LogHandler) (*Client, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{types.SubProtocol201},
		HandshakeTimeout: 10 * time.Second,
	}
	url := fmt.Sprintf("%s/%s", conf.Station.CsmsUrl, conf.Station.Id)
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if conn.Subprotocol() != types.SubProtocol201 {
		_ = conn.Close()
		return nil, fmt.Errorf("server did not accept subprotocol %s", types.SubProtocol201)
	}
	client := &Client{
		conn:      conn,
		stationId: conf.Station.Id,
		logger:    logger,
		pending:   make(map[string]chan pendingCall),
		done:      make(chan struct{}),
	}
	go client.readPump()
	return client, nil
}

// Done is closed when the connection is lost.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug(fmt.Sprintf("connection closed: %v", err))
			return
		}
		c.logger.RawDataEvent("in", string(data))
		elements, err := utility.ParseJson(data)
		if err != nil || len(elements) < 3 {
			c.logger.Error("parse incoming frame", err)
			continue
		}
		messageType, ok := elements[0].(float64)
		if !ok {
			continue
		}
		uniqueId, ok := elements[1].(string)
		if !ok {
			continue
		}
		switch int(messageType) {
		case 3:
			payload, err := json.Marshal(elements[2])
			c.deliver(uniqueId, pendingCall{payload: payload, err: err})
		case 4:
			description := ""
			if len(elements) > 3 {
				description, _ = elements[3].(string)
			}
			code, _ := elements[2].(string)
			c.deliver(uniqueId, pendingCall{err: fmt.Errorf("call error %s: %s", code, description)})
		default:
			c.logger.Warn(fmt.Sprintf("unexpected message type %d", int(messageType)))
		}
	}
}

func (c *Client) deliver(uniqueId string, result pendingCall) {
	c.mutex.Lock()
	ch, ok := c.pending[uniqueId]
	if ok {
		delete(c.pending, uniqueId)
	}
	c.mutex.Unlock()
	if ok {
		ch <- result
	} else {
		c.logger.Warn(fmt.Sprintf("no pending call for message %s", uniqueId))
	}
}

// Call sends a request frame and blocks until the matching result, an error
// frame, a timeout, or connection loss.
func (c *Client) Call(ctx context.Context, request ocpp.Request) ([]byte, error) {
	uniqueId := utility.NewUUID()
	frame := []interface{}{2, uniqueId, request.GetFeatureName(), request}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}

	ch := make(chan pendingCall, 1)
	c.mutex.Lock()
	c.pending[uniqueId] = ch
	c.mutex.Unlock()

	c.writeMutex.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMutex.Unlock()
	if err != nil {
		c.forget(uniqueId)
		return nil, fmt.Errorf("send %s: %w", request.GetFeatureName(), err)
	}
	c.logger.RawDataEvent("out", string(data))

	select {
	case result := <-ch:
		return result.payload, result.err
	case <-time.After(callTimeout):
		c.forget(uniqueId)
		return nil, fmt.Errorf("%s: no response within %s", request.GetFeatureName(), callTimeout)
	case <-c.done:
		c.forget(uniqueId)
		return nil, utility.Err("connection lost")
	case <-ctx.Done():
		c.forget(uniqueId)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(uniqueId string) {
	c.mutex.Lock()
	delete(c.pending, uniqueId)
	c.mutex.Unlock()
}

func (c *Client) BootNotification(ctx context.Context) (*ocpp.BootNotificationResponse, error) {
	request := &ocpp.BootNotificationRequest{
		ChargingStation: ocpp.ChargingStation{Model: stationModel, VendorName: stationVendor},
		Reason:          "PowerUp",
	}
	payload, err := c.Call(ctx, request)
	if err != nil {
		return nil, err
	}
	var response ocpp.BootNotificationResponse
	if err = json.Unmarshal(payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.Call(ctx, &ocpp.HeartbeatRequest{})
	return err
}

func (c *Client) Authorize(ctx context.Context, token string) (*ocpp.AuthorizeResponse, error) {
	payload, err := c.Call(ctx, ocpp.NewAuthorizeRequest(token))
	if err != nil {
		return nil, err
	}
	var response ocpp.AuthorizeResponse
	if err = json.Unmarshal(payload, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ErrAlreadyStarted reports that another pipeline won the start race for the
// same reservation. The losing session stops without corrupting state.
var ErrAlreadyStarted = utility.Err("transaction already started for this reservation")

func (c *Client) TransactionStarted(ctx context.Context, sc *ocpp.SessionContext) error {
	request := &ocpp.TransactionEventRequest{
		EventType:       ocpp.TransactionEventStarted,
		Timestamp:       types.NewDateTime(time.Now()),
		TriggerReason:   triggerStarted,
		SeqNo:           1,
		TransactionInfo: ocpp.TransactionInfo{TransactionId: sc.ReservationId},
		Context:         sc,
	}
	payload, err := c.Call(ctx, request)
	if err != nil {
		return err
	}
	var response ocpp.TransactionEventResponse
	if err = json.Unmarshal(payload, &response); err != nil {
		return err
	}
	if response.IdTokenInfo != nil && response.IdTokenInfo.Status != types.AuthorizationStatusAccepted {
		return ErrAlreadyStarted
	}
	return nil
}

func (c *Client) CostUpdated(ctx context.Context, reservationId string, totalCost, totalEnergy int) error {
	request := &ocpp.CostUpdatedRequest{
		TotalCost:     totalCost,
		TotalEnergy:   totalEnergy,
		ReservationId: reservationId,
	}
	_, err := c.Call(ctx, request)
	return err
}

func (c *Client) TransactionEnded(ctx context.Context, sc *ocpp.SessionContext) error {
	request := &ocpp.TransactionEventRequest{
		EventType:     ocpp.TransactionEventEnded,
		Timestamp:     types.NewDateTime(time.Now()),
		TriggerReason: triggerEnded,
		SeqNo:         2,
		TransactionInfo: ocpp.TransactionInfo{
			TransactionId: sc.ReservationId,
			StoppedReason: stopReasonEnergy,
		},
		Context: sc,
	}
	_, err := c.Call(ctx, request)
	return err
}

func (c *Client) StatusNotification(ctx context.Context, evseId string, status ocpp.ConnectorStatus) error {
	request := &ocpp.StatusNotificationRequest{
		Timestamp:       types.NewDateTime(time.Now()),
		ConnectorStatus: status,
		EvseId:          evseId,
		ConnectorId:     1,
	}
	_, err := c.Call(ctx, request)
	return err
}
