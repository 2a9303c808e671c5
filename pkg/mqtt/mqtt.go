package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
	"github.com/sirupsen/logrus"
)

// Broker is an embedded MQTT broker. Local devices such as the p1ib meter bridge publish to it
// and aggregated points are mirrored out through it.
type Broker struct {
	server *mqttv2.Server
	nextID atomic.Int32
}

func Start(ctx context.Context, wg *sync.WaitGroup, address string) (*Broker, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: address})
	err := server.AddListener(tcp)
	if err != nil {
		return nil, err
	}

	err = server.Serve()
	if err != nil {
		return nil, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		server.Close()
	}()
	return &Broker{server: server}, nil
}

// Subscribe calls fn for every message matching filter.
func (b *Broker) Subscribe(filter string, fn func(topic string, payload []byte)) error {
	id := int(b.nextID.Add(1))
	return b.server.Subscribe(filter, id, func(cl *mqttv2.Client, sub packets.Subscription, pk packets.Packet) {
		fn(pk.TopicName, pk.Payload)
	})
}

// SubscribeP1ib stores every p1ib state message on topic in cache.
func (b *Broker) SubscribeP1ib(topic string, cache *meter.Cache) error {
	return b.Subscribe(topic, func(topic string, payload []byte) {
		p := &P1ib{}
		err := json.Unmarshal(payload, p)
		if err != nil {
			logrus.Errorf("mqtt: error decoding p1ib message on %s: %s", topic, err)
			return
		}
		logrus.Tracef("mqtt: p1ib %s import %.3f kW export %.3f kW", topic, p.P1IbActivePowerPlusQ1Q4, p.P1IbActivePowerMinusQ2Q3)
		data := p.AsMeterData(topic, time.Now())
		cache.Set(&data)
	})
}

// Publish sends payload to topic with qos 0, not retained.
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.server.Publish(topic, payload, false, 0)
	if err != nil {
		return fmt.Errorf("error publishing to %s: %w", topic, err)
	}
	return nil
}
