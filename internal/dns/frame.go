package dns

// Frame represents a complete DNS message (RFC 1035 Section 4).
//
// Authority and Additional hold the raw wire bytes of those sections
// verbatim: this resolver never needs to inspect them, so they are
// carried opaquely rather than parsed into records.
type Frame struct {
	Header     Header
	Questions  []Question
	Answers    []Answer
	Authority  []byte
	Additional []byte
}

// Marshal serializes the frame to DNS wire format (big-endian).
func (f Frame) Marshal() []byte {
	h := Header{
		ID:      f.Header.ID,
		Flags:   f.Header.Flags,
		QDCount: uint16(len(f.Questions)),
		ANCount: uint16(len(f.Answers)),
		NSCount: 0,
		ARCount: 0,
	}
	if len(f.Authority) > 0 {
		h.NSCount = f.Header.NSCount
	}
	if len(f.Additional) > 0 {
		h.ARCount = f.Header.ARCount
	}

	hb, _ := h.Marshal()
	estimatedSize := HeaderSize + len(f.Questions)*32 + len(f.Answers)*32 + len(f.Authority) + len(f.Additional)
	out := make([]byte, 0, estimatedSize)
	out = append(out, hb...)
	for _, q := range f.Questions {
		out = append(out, q.Marshal()...)
	}
	for _, a := range f.Answers {
		out = append(out, a.Marshal()...)
	}
	out = append(out, f.Authority...)
	out = append(out, f.Additional...)
	return out
}

// ParseFrame parses a complete DNS message: the header, then
// question_count questions, then answer_count answers. The authority
// and additional sections are walked record by record only to find
// where they end, and their raw bytes are retained opaquely; any bytes
// after the last counted record are ignored.
func ParseFrame(msg []byte) (Frame, error) {
	off := 0
	h, err := ParseHeader(msg, &off)
	if err != nil {
		return Frame{}, err
	}

	f := Frame{Header: h}

	f.Questions = make([]Question, 0, min(int(h.QDCount), MaxQuestions))
	for range h.QDCount {
		q, err := ParseQuestion(msg, &off)
		if err != nil {
			return Frame{}, err
		}
		f.Questions = append(f.Questions, q)
	}

	f.Answers = make([]Answer, 0, min(int(h.ANCount), MaxRRPerSection))
	for range h.ANCount {
		a, err := ParseAnswer(msg, &off)
		if err != nil {
			return Frame{}, err
		}
		f.Answers = append(f.Answers, a)
	}

	nsStart := off
	for range h.NSCount {
		if _, err := ParseAnswer(msg, &off); err != nil {
			return Frame{}, err
		}
	}
	if off > nsStart {
		f.Authority = append([]byte{}, msg[nsStart:off]...)
	}

	arStart := off
	for range h.ARCount {
		if _, err := ParseAnswer(msg, &off); err != nil {
			return Frame{}, err
		}
	}
	if off > arStart {
		f.Additional = append([]byte{}, msg[arStart:off]...)
	}

	return f, nil
}
