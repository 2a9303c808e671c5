package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/goburrow/modbus"
	"github.com/nergy-se/gtimonitor/pkg/modbusclient"
)

var decimals = flag.Int("decimals", 1, "")

type handler interface {
	modbus.ClientHandler
	Close() error
}

func main() {
	address := flag.String("addr", "", "tcp modbus address")
	port := flag.String("port", "", "serial port for modbus rtu, used when -addr is empty")
	baud := flag.Int("baud", 9600, "rtu baud rate")

	inputreg := flag.Int("inputreg", 0, "input reg")
	holdingreg := flag.Int("holdingreg", 0, "")

	slaveID := flag.Int("slave", 1, "modbus slave id")
	value := flag.Int("value", 0, "value to write. will write any value")
	flag.Parse()

	var h handler
	if *address != "" {
		th := modbus.NewTCPClientHandler(*address)
		th.SlaveId = byte(*slaveID)
		th.Timeout = 2 * time.Second
		h = th
	} else {
		rh := modbus.NewRTUClientHandler(*port)
		rh.BaudRate = *baud
		rh.DataBits = 8
		rh.Parity = "N"
		rh.StopBits = 1
		rh.SlaveId = byte(*slaveID)
		rh.Timeout = 2 * time.Second
		h = rh
	}
	defer h.Close()
	client := modbusclient.New(modbus.NewClient(h), h.Close)

	var f interface{}
	var err error
	if isFlagPassed("inputreg") {
		f, err = scale(client.ReadInputRegister(uint16(*inputreg)))
	}
	if isFlagPassed("holdingreg") {
		if isFlagPassed("value") {
			f, err = client.WriteSingleRegister(uint16(*holdingreg), uint16(*value))
		} else {
			var u uint
			u, err = client.ReadHoldingRegisterUint16(uint16(*holdingreg))
			f, _ = scale(int(u), nil)
		}
	}

	if err != nil {
		log.Println("error was: ", err)
	}
	if v, ok := f.([]byte); ok {
		fmt.Printf("raw response: %# x (length: %d)\n", v, len(v))
	}
	log.Println("value is: ", f)
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func IntPow(base, exp int) float64 {
	result := 1
	for {
		if exp&1 == 1 {
			result *= base
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		base *= base
	}

	return float64(result)
}

func scale(i int, err error) (float64, error) {
	f := float64(i) / IntPow(10, *decimals)
	return f, err
}
