package bmb

import "errors"

// errScanNotDone is returned when a BMB's SCANCTRL register doesn't show
// SCANDONE|DATARDY by the time the next acquisition poll runs; the caller
// retries on the next DataRefreshPeriodMs tick rather than treating this
// as a transport failure.
var errScanNotDone = errors.New("bmb: scan not done on all devices")
