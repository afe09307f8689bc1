// Package bmb drives the battery-monitor-board daisy chain over a
// link.Transport: register constants and conversion factors, NTC/Zener
// temperature tables, the init sequence, and the 100ms-gated acquisition
// cycle, ported from original_source/Core/Inc/bmb.h and
// original_source/Core/Src/bmb.c's initBmbs/updateBmbData. The register
// access pattern (fixed scratch buffers, integer-only register values)
// follows drivers/ltc4015's Device/readWord/writeWord idiom.
package bmb

// Register addresses, unchanged from the original ASCI register map.
const (
	RegDEVCFG1      = 0x10
	RegGPIO         = 0x11
	RegMEASUREEN    = 0x12
	RegSCANCTRL     = 0x13
	RegAUTOBALSWDIS = 0x18
	RegACQCFG       = 0x19
	RegBALSWEN      = 0x1A
	RegCELLn        = 0x20
	RegVBLOCK       = 0x2C
	RegAIN1         = 0x2D
	RegAIN2         = 0x2E
)

// Mux channel positions cycled across AIN1/AIN2 reads.
const (
	Mux1 = iota
	Mux2
	Mux3
	Mux4
	Mux5
	Mux6
	Mux7
	Mux8
	NumMuxChannels
)

// ADC scale factors (CONVERT_* in the original firmware).
const (
	Convert12BitTo3V3 = 0.000805664
	Convert14BitTo5V  = 0.000305176
	Convert14BitTo60V = 0.0036621
)

// DataRefreshPeriodMs gates the acquisition cycle (DATA_REFRESH_DELAY_MS).
const DataRefreshPeriodMs = 100

// scanDoneMask is the SCANDONE|DATARDY bit pattern in SCANCTRL.
const scanDoneMask = 0xA000

// initScanCtrl kicks off a 32-oversample acquisition (also reused after
// every temperature-channel read to start the next cycle).
const initScanCtrl = 0x0841

const (
	devcfg1AliveCounterEnable = 0x1042
	measureEnAll              = 0xFFFF
	acqCfgAll                 = 0xFFFF
	autoBalSwDisDelay         = 0x0033
)

