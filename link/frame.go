package link

// Broadcast commands understood by every device on the daisy chain.
const (
	CmdWriteAll byte = 0x02
	CmdReadAll  byte = 0x03
	CmdHelloAll byte = 0x57
)

// Addressed-write/read tag bits, packed into the low three bits of an
// addressed command byte alongside the target BMB index: cmd = (index<<3)|tag.
const (
	tagWrite byte = 0b100
	tagRead  byte = 0b101
)

func addressedCmd(bmbIndex int, tag byte) byte {
	return byte(bmbIndex<<3) | tag
}

// BuildWriteAllFrame encodes a broadcast write: [cmd, reg, value-lo, value-hi, crc, alive=0].
func BuildWriteAllFrame(reg byte, value uint16) []byte {
	return buildWriteFrame(CmdWriteAll, reg, value)
}

// BuildWriteDeviceFrame encodes an addressed write to a single BMB.
func BuildWriteDeviceFrame(bmbIndex int, reg byte, value uint16) []byte {
	return buildWriteFrame(addressedCmd(bmbIndex, tagWrite), reg, value)
}

func buildWriteFrame(cmd, reg byte, value uint16) []byte {
	f := make([]byte, 6)
	f[0] = cmd
	f[1] = reg
	f[2] = byte(value)
	f[3] = byte(value >> 8)
	f[4] = CRC8(f[:4])
	f[5] = 0 // alive counter, filled in by responders
	return f
}

// BuildReadAllFrame encodes a broadcast read: [cmd, reg, data-check=0, crc, alive=0].
func BuildReadAllFrame(reg byte) []byte {
	return buildReadFrame(CmdReadAll, reg)
}

// BuildReadDeviceFrame encodes an addressed read from a single BMB.
func BuildReadDeviceFrame(bmbIndex int, reg byte) []byte {
	return buildReadFrame(addressedCmd(bmbIndex, tagRead), reg)
}

func buildReadFrame(cmd, reg byte) []byte {
	f := make([]byte, 5)
	f[0] = cmd
	f[1] = reg
	f[2] = 0 // data-check
	f[3] = CRC8(f[:3])
	f[4] = 0 // alive counter
	return f
}

// BuildHelloAllFrame encodes the enumeration broadcast.
func BuildHelloAllFrame() []byte {
	f := make([]byte, 3)
	f[0] = CmdHelloAll
	f[1] = CRC8(f[:1])
	f[2] = 0
	return f
}

// VerifyAlive recomputes the CRC over reply[:len-2] and checks it against
// reply[len-2], then checks the alive counter in reply[len-1] against
// wantAlive (the number of responding BMBs, or 1 for an addressed
// transaction).
func VerifyAlive(reply []byte, wantAlive int) error {
	if len(reply) < 2 {
		return errShortReply
	}
	payload := reply[:len(reply)-2]
	gotCRC := reply[len(reply)-2]
	gotAlive := int(reply[len(reply)-1])
	if CRC8(payload) != gotCRC {
		return errCRCMismatch
	}
	if gotAlive != wantAlive {
		return errAliveMismatch
	}
	return nil
}

// ExtractReadAllWords splits a read-all reply's payload (2 bytes per BMB,
// low byte first as received from the wire) into one uint16
// per device, after VerifyAlive has already validated framing.
func ExtractReadAllWords(reply []byte, numBmbs int) ([]uint16, error) {
	if len(reply) != numBmbs*2+2 {
		return nil, errShortReply
	}
	out := make([]uint16, numBmbs)
	for i := 0; i < numBmbs; i++ {
		lo := reply[i*2]
		hi := reply[i*2+1]
		out[i] = uint16(lo) | uint16(hi)<<8
	}
	return out, nil
}
