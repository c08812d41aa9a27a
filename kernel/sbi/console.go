package sbi

// UART register offsets while DLAB = 0.
const (
	regRBR = 0 // receive buffer (read)
	regTHR = 0 // transmitter holding (write)
	regIER = 1 // interrupt enable
	regFCR = 2 // FIFO control (write)
	regLCR = 3 // line control
	regMCR = 4 // modem control
	regLSR = 5 // line status
)

const (
	ierRxAvailable = uint8(1 << 0)

	fcrEnable       = uint8(1 << 0)
	fcrClearRxFIFO  = uint8(1 << 1)
	fcrClearTxFIFO  = uint8(1 << 2)
	fcrTrigger14    = uint8(0b11 << 6)
	lcrData8        = uint8(0b11)
	lcrDLABEnable   = uint8(1 << 7)
	mcrDataReady    = uint8(1 << 0)
	mcrAuxOutput2   = uint8(1 << 3)
	lsrInputReady   = uint8(1 << 0)
	lsrOutputEmpty  = uint8(1 << 5)
	asciiBackspace  = byte(0x08)
	asciiDelete     = byte(0x7f)
	divisor38400LSB = uint8(0x03)
)

// Console is an io.Writer that sends bytes to the board UART by polling the
// line status register.
type Console struct {
	base uintptr
}

// NewConsole returns a console bound to the UART at UARTBase.
func NewConsole() *Console {
	return &Console{base: UARTBase}
}

// Init programs the UART for 38.4K baud, 8 data bits, enabled FIFOs and
// receive interrupts.
func (c *Console) Init() {
	mmioWrite8Fn(c.base+regIER, 0)
	mmioWrite8Fn(c.base+regLCR, lcrDLABEnable)
	mmioWrite8Fn(c.base+regRBR, divisor38400LSB)
	mmioWrite8Fn(c.base+regIER, 0)
	mmioWrite8Fn(c.base+regLCR, lcrData8)
	mmioWrite8Fn(c.base+regFCR, fcrEnable|fcrClearRxFIFO|fcrClearTxFIFO|fcrTrigger14)
	mmioWrite8Fn(c.base+regMCR, mcrDataReady|mcrAuxOutput2)
	mmioWrite8Fn(c.base+regIER, ierRxAvailable)
}

// Write implements io.Writer. Backspace and delete erase the previous
// character on the terminal.
func (c *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		switch b {
		case asciiBackspace, asciiDelete:
			c.putByte(asciiBackspace)
			c.putByte(' ')
			c.putByte(asciiBackspace)
		default:
			c.putByte(b)
		}
	}

	return len(p), nil
}

// ReadByte blocks until the UART has received a byte and returns it.
func (c *Console) ReadByte() (byte, error) {
	for mmioRead8Fn(c.base+regLSR)&lsrInputReady == 0 {
	}
	return mmioRead8Fn(c.base + regRBR), nil
}

func (c *Console) putByte(b byte) {
	for mmioRead8Fn(c.base+regLSR)&lsrOutputEmpty == 0 {
	}
	mmioWrite8Fn(c.base+regTHR, b)
}
