package wire

// Decoder is a streaming frame decoder. Raw reads are appended with
// Feed; Next yields complete packets as they become available.
//
// Decode errors consume exactly one buffered byte before returning, so
// the caller recovers by logging the error and calling Next again: the
// decoder rescans for start markers from the following byte. This is
// how the read loop survives corrupt frames and mid-stream garbage.
//
// Decoder is not safe for concurrent use; it is owned by the single
// reader goroutine of a connection.
type Decoder struct {
	buf []byte
}

// NewDecoder creates an empty streaming decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes read from the transport.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Buffered returns the number of undecoded bytes held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

// Next returns the next complete packet.
//
// It returns ErrNeedMoreData when the buffer holds less than one full
// frame (feed more bytes and retry), or a *ChecksumError /
// *ProtocolError for a corrupt frame (one byte has been discarded;
// call Next again to resume scanning).
func (d *Decoder) Next() (*Packet, error) {
	// Skip leading garbage: anything before a plausible SOP1, SOP2 pair.
	for len(d.buf) >= 2 {
		if d.buf[0] == SOP1 && (d.buf[1] == SOP2Answer || d.buf[1] == SOP2NoAnswer) {
			break
		}
		d.buf = d.buf[1:]
	}

	if len(d.buf) < headerSize {
		return nil, ErrNeedMoreData
	}

	sop2 := d.buf[1]
	hdr1 := d.buf[2]
	hdr2 := d.buf[3]
	seq := d.buf[4]
	length := d.buf[5]

	if length == 0 {
		d.buf = d.buf[1:]
		return nil, &ProtocolError{Reason: "zero length field"}
	}

	total := headerSize + int(length)
	if len(d.buf) < total {
		return nil, ErrNeedMoreData
	}

	payload := d.buf[headerSize : total-1]
	received := d.buf[total-1]
	computed := Checksum(hdr1, hdr2, seq, length, payload)
	if computed != received {
		d.buf = d.buf[1:]
		return nil, &ChecksumError{Computed: computed, Received: received}
	}

	pkt := &Packet{
		Device:   DeviceID(hdr1),
		Command:  hdr2,
		Sequence: seq,
		Payload:  append([]byte(nil), payload...),
		NoAnswer: sop2 == SOP2NoAnswer,
	}
	d.buf = d.buf[total:]

	return pkt, nil
}
