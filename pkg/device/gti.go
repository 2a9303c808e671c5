package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/modbusclient"
	"github.com/sirupsen/logrus"
)

type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// GTI reads output power from a grid tie inverter. The register holds W * 10.
type GTI struct {
	config  config.GTI
	handler modbusHandler
	client  modbusclient.Client
	mutex   sync.Mutex
}

func NewGTI(c config.GTI) *GTI {
	return &GTI{config: c}
}

func (g *GTI) Connect() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.handler != nil {
		return nil
	}

	if g.config.Address != "" {
		h := modbus.NewTCPClientHandler(g.config.Address)
		h.SlaveId = byte(g.config.UnitID)
		h.Timeout = 2 * time.Second
		g.handler = h
	} else {
		h := modbus.NewRTUClientHandler(g.config.ComPort)
		h.BaudRate = g.config.BaudRate
		h.DataBits = 8
		h.Parity = "N"
		h.StopBits = 1
		h.SlaveId = byte(g.config.UnitID)
		h.Timeout = 2 * time.Second
		g.handler = h
	}
	logrus.Infof("gti: connecting to %s unit %d", g.target(), g.config.UnitID)

	err := g.handler.Connect()
	if err != nil {
		g.handler = nil
		return fmt.Errorf("error connecting to gti %s: %w", g.target(), err)
	}
	g.client = modbusclient.New(modbus.NewClient(g.handler), g.handler.Close)
	return nil
}

func (g *GTI) target() string {
	if g.config.Address != "" {
		return g.config.Address
	}
	return g.config.ComPort
}

func (g *GTI) Read() (float64, error) {
	if err := g.Connect(); err != nil {
		return 0, readError("gti", err)
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.client == nil {
		return 0, readError("gti", errors.New("closed"))
	}

	v, err := g.client.ReadHoldingRegisterUint16(uint16(g.config.Register))
	if err != nil {
		return 0, readError("gti", err)
	}
	return float64(v) / 10, nil
}

func (g *GTI) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.handler == nil {
		return nil
	}
	err := g.handler.Close()
	g.handler = nil
	g.client = nil
	return err
}
