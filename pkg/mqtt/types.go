package mqtt

import (
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
)

/*
p1ib/sensor_state:

{
  "p1ib_hourly_active_import_q1_q4": 76215.335,
  "p1ib_hourly_active_export_q2_q3": 12925.573,
  "p1ib_active_power_plus_q1_q4": 4.396,
  "p1ib_active_power_minus_q2_q3": 0,
  "p1ib_active_power_plus_l1": 0.764,
  "p1ib_voltage_l1": 233.6,
  "p1ib_current_l1": 3.5,
  "p1ib_import_export": 4.396,
  "p1ib_meter": "Aidon"
}
*/

// P1ib is the subset of the p1ib bridge state we use. Power is in kW, energy in kWh.
type P1ib struct {
	P1IbHourlyActiveImportQ1Q4 float64 `json:"p1ib_hourly_active_import_q1_q4"`
	P1IbHourlyActiveExportQ2Q3 float64 `json:"p1ib_hourly_active_export_q2_q3"`
	P1IbActivePowerPlusQ1Q4    float64 `json:"p1ib_active_power_plus_q1_q4"`
	P1IbActivePowerMinusQ2Q3   float64 `json:"p1ib_active_power_minus_q2_q3"`
	P1IbVoltageL1              float64 `json:"p1ib_voltage_l1"`
	P1IbVoltageL2              float64 `json:"p1ib_voltage_l2"`
	P1IbVoltageL3              float64 `json:"p1ib_voltage_l3"`
	P1IbCurrentL1              float64 `json:"p1ib_current_l1"`
	P1IbCurrentL2              float64 `json:"p1ib_current_l2"`
	P1IbCurrentL3              float64 `json:"p1ib_current_l3"`
	P1IbMeter                  string  `json:"p1ib_meter"`
}

// AsMeterData converts to W and Wh. Current_W is the exported power, the side a producing
// installation feeds into the grid.
func (p P1ib) AsMeterData(id string, t time.Time) meter.Data {
	return meter.Data{
		Id:        id,
		Model:     "p1ib",
		Time:      t,
		Current_W: p.P1IbActivePowerMinusQ2Q3 * 1000,
		Total_WH:  p.P1IbHourlyActiveExportQ2Q3 * 1000,
		L1_A:      p.P1IbCurrentL1,
		L2_A:      p.P1IbCurrentL2,
		L3_A:      p.P1IbCurrentL3,
		L1_V:      p.P1IbVoltageL1,
		L2_V:      p.P1IbVoltageL2,
		L3_V:      p.P1IbVoltageL3,
	}
}
