package frame

import "bytes"

// Split is a bufio.SplitFunc that yields whole frames from a byte stream such
// as a UART. Bytes before a '#' are discarded, and a '#' that does not open a
// readable header is skipped so the scanner resynchronises on the next one.
// Tokens are not validated; pass them to Decode.
func (c Codec) Split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.IndexByte(data, '#')
	if start < 0 {
		return len(data), nil, nil
	}
	if start > 0 {
		return start, nil, nil
	}
	if len(data) <= offLength {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	total, ferr := c.FrameLength(data)
	if ferr != nil {
		return 1, nil, nil
	}
	if len(data) < total {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return total, data[:total], nil
}
