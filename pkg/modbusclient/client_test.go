package modbusclient

import (
	"os"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
)

func TestDecode(t *testing.T) {

	var tests = []struct {
		name     string
		expected int
		given    []byte
	}{
		{
			name:     "8bit negative",
			expected: -28,
			given:    []byte{0xe4},
		},
		{
			name:     "16bit negative",
			expected: -28,
			given:    []byte{0xff, 0xe4},
		},
		{
			name:     "16bit postive",
			expected: 31,
			given:    []byte{0x00, 0x1f},
		},
		{
			name:     "large 32bit positive",
			expected: 514773,
			given:    []byte{0x00, 0x07, 0xda, 0xd5},
		},
		{
			name:     "32bit negative",
			expected: -29,
			given:    []byte{0xff, 0xff, 0xff, 0xe3},
		},
		{
			name:     "empty",
			expected: 0,
			given:    nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.given))
		})
	}

}

func TestReadHoldingRegisterUint16(t *testing.T) {
	serv := mbserver.NewServer()
	serv.HoldingRegisters[86] = 40000
	err := serv.ListenTCP("127.0.0.1:1503")
	require.NoError(t, err)
	defer serv.Close()

	handler := modbus.NewTCPClientHandler("127.0.0.1:1503")
	handler.SlaveId = 1
	defer handler.Close()

	c := New(modbus.NewClient(handler), handler.Close)
	v, err := c.ReadHoldingRegisterUint16(86)
	require.NoError(t, err)
	assert.Equal(t, uint(40000), v)

	signed, err := c.ReadHoldingRegister16(86)
	require.NoError(t, err)
	assert.Equal(t, 40000-65536, signed)
}

func TestCloseIfNeeded(t *testing.T) {
	closed := 0
	c := New(nil, func() error {
		closed++
		return nil
	})
	c.closeIfNeeded(nil)
	assert.Equal(t, 0, closed)
	c.closeIfNeeded(os.ErrDeadlineExceeded)
	assert.Equal(t, 1, closed)
}
