package mbus

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonaz/gombus"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
)

type Mbus struct {
	comPort string
	conn    gombus.Conn
	mutex   *sync.Mutex
}

func New(comPort string) *Mbus {
	return &Mbus{
		comPort: comPort,
		mutex:   &sync.Mutex{},
	}
}

func (m *Mbus) Connect() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		return nil
	}
	c, err := gombus.DialSerial(m.comPort)
	if err != nil {
		return err
	}
	m.conn = c
	return nil
}

func (m *Mbus) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}

// ReadValues polls the meter at primaryID and maps the frame according to model.
func (m *Mbus) ReadValues(model string, primaryID int) (*meter.Data, error) {
	err := m.Connect()
	if err != nil {
		return nil, err
	}

	frame, err := m.read(primaryID)
	if err != nil {
		// drop the connection so the next poll starts from a clean port
		m.Close()
		return nil, err
	}

	data := &meter.Data{
		Id:    strconv.Itoa(primaryID),
		Model: model,
		Time:  time.Now(),
	}
	switch model {
	case "garo-GNM3D-MBUS":
		if len(frame.DataRecords) < 11 {
			return nil, fmt.Errorf("%s: short frame with %d records", model, len(frame.DataRecords))
		}
		data.Total_WH = frame.DataRecords[0].Value
		data.Current_W = frame.DataRecords[2].Value
		data.Current_VLL = frame.DataRecords[6].Value
		data.Current_VLN = frame.DataRecords[7].Value
		data.L1_A = frame.DataRecords[8].Value
		data.L2_A = frame.DataRecords[9].Value
		data.L3_A = frame.DataRecords[10].Value
	default:
		return nil, fmt.Errorf("unsupported mbus model %q", model)
	}

	return data, nil
}

func (m *Mbus) read(primaryAddr int) (*gombus.DecodedFrame, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, err := m.conn.Write(gombus.SndNKE(uint8(primaryAddr)))
	if err != nil {
		return nil, err
	}

	err = m.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	if err != nil {
		return nil, err
	}

	_, err = gombus.ReadSingleCharFrame(m.conn)
	if err != nil {
		return nil, err
	}

	return gombus.ReadSingleFrame(m.conn, primaryAddr)
}
