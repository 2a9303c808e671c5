package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nergy-se/gtimonitor/pkg/mqtt"
	"github.com/sirupsen/logrus"
)

// Standalone broker that logs every message. Used to check what a p1ib bridge
// publishes or what gtimonitor mirrors before pointing the real service at it.
func main() {
	address := flag.String("addr", ":1883", "listen address")
	filter := flag.String("filter", "#", "topic filter to log")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wg := &sync.WaitGroup{}
	broker, err := mqtt.Start(ctx, wg, *address)
	if err != nil {
		logrus.Fatal(err)
	}

	err = broker.Subscribe(*filter, func(topic string, payload []byte) {
		logrus.WithField("topic", topic).Info(string(payload))
	})
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.Infof("listening on %s, logging %s", *address, *filter)

	wg.Wait()
}
