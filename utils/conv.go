package utils

import (
	"bytes"

	"golang.org/x/text/transform"

	"github.com/mogaika/smash_model_tools/config"
)

func BytesToString(bs []byte) string {
	n := bytes.IndexByte(bs, 0)
	if n < 0 {
		n = len(bs)
	}

	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[0:n])
	if err != nil {
		panic(err)
	}

	return string(s)
}

func StringToBytes(s string, nilTerminate bool) []byte {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		panic(err)
	}

	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs
}

// StringToBytesBuffer encodes s into a fixed size zero padded buffer.
// Panics if the encoded string does not fit.
func StringToBytesBuffer(s string, bufSize int, nilTerminate bool) []byte {
	bs := StringToBytes(s, nilTerminate)
	if len(bs) > bufSize {
		panic(bs)
	}
	if len(bs) < bufSize {
		r := make([]byte, bufSize)
		copy(r, bs)
		bs = r
	}
	return bs
}
