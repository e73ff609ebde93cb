package consensus

import "encoding/binary"

// CompactSize is a Bitcoin-style variable-length unsigned integer encoding,
// kept from the teacher's wire format for canonical transaction/block
// serialization (input/output counts, data lengths).
type CompactSize uint64

// Encode returns the minimal CompactSize encoding of cs.
func (cs CompactSize) Encode() []byte {
	return AppendCompactSize(nil, uint64(cs))
}

// AppendCompactSize encodes n in Bitcoin-style CompactSize and appends to dst.
func AppendCompactSize(dst []byte, n uint64) []byte {
	return appendCompactSize(dst, n)
}

func appendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return appendU16le(dst, uint16(n))
	case n <= 0xffff_ffff:
		dst = append(dst, 0xfe)
		return appendU32le(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return appendU64le(dst, n)
	}
}

// EncodeCompactSize encodes n as a Bitcoin-style CompactSize varint.
func EncodeCompactSize(n uint64) []byte {
	return appendCompactSize(nil, n)
}

// DecodeCompactSize decodes one CompactSize value from the front of buf.
// Returns the decoded value and the number of bytes consumed. Non-minimal
// encodings are rejected.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	off := 0
	v, err := readCompactSize(buf, &off)
	return v, off, err
}

func readCompactSize(b []byte, off *int) (uint64, error) {
	start := *off
	tag, err := readU8(b, off)
	if err != nil {
		return 0, err
	}

	switch {
	case tag < 0xfd:
		return uint64(tag), nil
	case tag == 0xfd:
		v, err := readU16le(b, off)
		if err != nil {
			return 0, err
		}
		if v < 0xfd {
			*off = start
			return 0, newErr(KindValidation, CodeParse, "non-minimal CompactSize (0xfd)")
		}
		return uint64(v), nil
	case tag == 0xfe:
		v, err := readU32leAt(b, off)
		if err != nil {
			return 0, err
		}
		if v <= 0xffff {
			*off = start
			return 0, newErr(KindValidation, CodeParse, "non-minimal CompactSize (0xfe)")
		}
		return uint64(v), nil
	default: // 0xff
		v, err := readU64leAt(b, off)
		if err != nil {
			return 0, err
		}
		if v <= 0xffff_ffff {
			*off = start
			return 0, newErr(KindValidation, CodeParse, "non-minimal CompactSize (0xff)")
		}
		return v, nil
	}
}

func readU8(b []byte, off *int) (byte, error) {
	if *off+1 > len(b) {
		return 0, newErr(KindValidation, CodeParse, "truncated u8")
	}
	v := b[*off]
	*off++
	return v, nil
}

func readU16le(b []byte, off *int) (uint16, error) {
	if *off+2 > len(b) {
		return 0, newErr(KindValidation, CodeParse, "truncated u16")
	}
	v := binary.LittleEndian.Uint16(b[*off : *off+2])
	*off += 2
	return v, nil
}

func readU32leAt(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, newErr(KindValidation, CodeParse, "truncated u32")
	}
	v := binary.LittleEndian.Uint32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64leAt(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, newErr(KindValidation, CodeParse, "truncated u64")
	}
	v := binary.LittleEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func appendU16le(dst []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendU32le(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

func appendU64le(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendU16le appends v in little-endian order to dst.
func AppendU16le(dst []byte, v uint16) []byte { return appendU16le(dst, v) }

// AppendU32le appends v in little-endian order to dst.
func AppendU32le(dst []byte, v uint32) []byte { return appendU32le(dst, v) }

// AppendU64le appends v in little-endian order to dst.
func AppendU64le(dst []byte, v uint64) []byte { return appendU64le(dst, v) }
