package device

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/sirupsen/logrus"
)

// Light reads lux from a serial light sensor. The sensor answers "GET" with one line holding the value.
type Light struct {
	config config.Light
	open   func() (io.ReadWriteCloser, error)

	port   io.ReadWriteCloser
	reader *bufio.Reader
	mutex  sync.Mutex
}

func NewLight(c config.Light) *Light {
	return &Light{
		config: c,
		open: func() (io.ReadWriteCloser, error) {
			return serial.Open(&serial.Config{
				Address:  c.ComPort,
				BaudRate: c.BaudRate,
				DataBits: 8,
				StopBits: 1,
				Parity:   "N",
				Timeout:  200 * time.Millisecond,
			})
		},
	}
}

func (l *Light) Connect() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.connect()
}

func (l *Light) connect() error {
	if l.port != nil {
		return nil
	}
	logrus.Infof("light: opening %s", l.config.ComPort)
	p, err := l.open()
	if err != nil {
		return fmt.Errorf("error opening light sensor %s: %w", l.config.ComPort, err)
	}
	l.port = p
	l.reader = bufio.NewReader(p)
	return nil
}

func (l *Light) Read() (float64, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.connect(); err != nil {
		return 0, readError("light", err)
	}

	_, err := l.port.Write([]byte("GET"))
	if err != nil {
		l.close()
		return 0, readError("light", err)
	}

	line, err := l.reader.ReadString('\n')
	if err != nil {
		// a partial line would poison the next read
		l.close()
		return 0, readError("light", err)
	}
	line = strings.TrimSpace(line)
	logrus.Tracef("light: received %q", line)

	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, readError("light", err)
	}
	return v, nil
}

func (l *Light) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.close()
}

func (l *Light) close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	l.reader = nil
	return err
}
