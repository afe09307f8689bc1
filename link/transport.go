// Package link implements the wire-link transport to the BMB daisy chain:
// frame encoding and CRC (frame.go, crc.go), and the duplex transaction
// protocol with retry and comms-health tracking modeled on
// original_source/Core/Src/bmbInterface.c's initASCI/helloAll/readAll/
// writeAll/readDevice/writeDevice family.
package link

import (
	"time"

	"github.com/gopher-motorsports/battery-management-system-23-sub000/errcode"
	"github.com/gopher-motorsports/battery-management-system-23-sub000/leakybucket"
)

// MaxRetries bounds every self-verifying register transaction, matching
// NUM_DATA_CHECKS in bmbInterface.h.
const MaxRetries = 3

// InterruptTimeout bounds the wait for the line driver's RX-stop interrupt,
// matching TIMEOUT_SPI_COMPLETE_MS.
const InterruptTimeout = 10 * time.Millisecond

// Status is the tri-state result of a bounded interrupt wait: a timeout is
// not itself an error, only a failed attempt the retry loop accounts for.
type Status int

const (
	StatusTimeout Status = iota
	StatusSuccess
	StatusError
)

// DuplexLink is the blocking byte-level duplex connection to the line
// driver chip. Its shape matches tinygo.org/x/drivers.SPI so real hardware
// (or that driver's fake for tests) can stand in directly.
type DuplexLink interface {
	Tx(w, r []byte) error
}

// InterruptWaiter blocks for up to timeout for the line driver's RX-stop
// (or RX-error/RX-overflow) signal, collapsing the ISR-driven semaphore
// wait into a single bounded call (spec.md §5's only suspension points).
type InterruptWaiter interface {
	Wait(timeout time.Duration) Status
}

// Transport drives the BMB daisy chain over a DuplexLink, self-verifying
// every transaction and feeding outcomes into a leaky bucket so sustained
// failure can be distinguished from a one-off retry.
type Transport struct {
	link    DuplexLink
	irq     InterruptWaiter
	health  *leakybucket.Bucket
	numBmbs int
}

// New constructs a Transport. numBmbs is the expected alive-counter value
// for broadcast transactions; it is updated by HelloAll.
func New(l DuplexLink, irq InterruptWaiter, numBmbs int) *Transport {
	return &Transport{
		link:    l,
		irq:     irq,
		health:  leakybucket.New(leakybucket.Reference),
		numBmbs: numBmbs,
	}
}

// Health exposes the comms bucket so the scheduler can raise the
// comms-link-filled alert when it latches.
func (tr *Transport) Health() *leakybucket.Bucket { return tr.health }

// NumBmbs returns the device count learned from the last successful
// HelloAll.
func (tr *Transport) NumBmbs() int { return tr.numBmbs }

func (tr *Transport) record(err error) {
	if err != nil {
		tr.health.Failure()
	} else {
		tr.health.Success()
	}
}

// transact sends req and returns a reply of replyLen bytes, making at most
// MaxRetries attempts in total at the full send/wait/verify cycle.
func (tr *Transport) transact(req []byte, replyLen int, verify func([]byte) error) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		reply := make([]byte, replyLen)
		if err := tr.link.Tx(req, reply); err != nil {
			lastErr = err
			continue
		}
		switch tr.irq.Wait(InterruptTimeout) {
		case StatusTimeout:
			lastErr = errInterruptWait
			continue
		case StatusError:
			lastErr = errInterruptError
			continue
		}
		if err := verify(reply); err != nil {
			lastErr = err
			continue
		}
		tr.record(nil)
		return reply, nil
	}
	tr.record(lastErr)
	return nil, errcode.Wrap("link.transact", codeForErr(lastErr), errVerifyFailed)
}

// HelloAll broadcasts the enumeration command and returns the number of
// responding BMBs, updating NumBmbs on success.
func (tr *Transport) HelloAll() (int, error) {
	req := BuildHelloAllFrame()
	reply, err := tr.transact(req, 2, func(r []byte) error {
		if len(r) < 1 {
			return errShortReply
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	count := int(reply[len(reply)-1])
	tr.numBmbs = count
	return count, nil
}

// WriteAll broadcasts value to reg on every BMB and verifies the alive
// counter equals expectedCount.
func (tr *Transport) WriteAll(reg byte, value uint16, expectedCount int) error {
	req := BuildWriteAllFrame(reg, value)
	_, err := tr.transact(req, len(req), func(r []byte) error {
		return VerifyAlive(r, expectedCount)
	})
	return err
}

// WriteDevice writes value to reg on a single addressed BMB.
func (tr *Transport) WriteDevice(bmbIndex int, reg byte, value uint16) error {
	req := BuildWriteDeviceFrame(bmbIndex, reg, value)
	_, err := tr.transact(req, len(req), func(r []byte) error {
		return VerifyAlive(r, 1)
	})
	return err
}

// ReadAll broadcasts a read of reg and returns one 16-bit value per BMB.
func (tr *Transport) ReadAll(reg byte, expectedCount int) ([]uint16, error) {
	req := BuildReadAllFrame(reg)
	replyLen := expectedCount*2 + 2
	reply, err := tr.transact(req, replyLen, func(r []byte) error {
		return VerifyAlive(r, expectedCount)
	})
	if err != nil {
		return nil, err
	}
	return ExtractReadAllWords(reply, expectedCount)
}

// ReadDevice reads reg from a single addressed BMB.
func (tr *Transport) ReadDevice(bmbIndex int, reg byte) (uint16, error) {
	req := BuildReadDeviceFrame(bmbIndex, reg)
	reply, err := tr.transact(req, 4, func(r []byte) error {
		return VerifyAlive(r, 1)
	})
	if err != nil {
		return 0, err
	}
	words, err := ExtractReadAllWords(reply, 1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}
