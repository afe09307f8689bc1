package link

import (
	"errors"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/errcode"
)

var (
	errShortReply     = errors.New("link: reply too short to contain crc/alive trailer")
	errCRCMismatch    = errors.New("link: crc mismatch")
	errAliveMismatch  = errors.New("link: alive counter mismatch")
	errVerifyFailed   = errors.New("link: read-back verification failed after retries")
	errInterruptError = errors.New("link: line driver reported an RX error")
	errInterruptWait  = errors.New("link: timed out waiting for RX-stop interrupt")
)

func codeForErr(err error) errcode.Code {
	switch err {
	case errCRCMismatch:
		return errcode.LinkCRCMismatch
	case errAliveMismatch:
		return errcode.LinkAliveMismatch
	case errInterruptError:
		return errcode.LinkInterruptError
	case errInterruptWait:
		return errcode.LinkInterruptTimeout
	default:
		return errcode.LinkTransientFailure
	}
}
