package wwvb

// PackBCD packs n (0-999) into three BCD nibbles: hundreds in bits 11-8, tens in 7-4
// and ones in 3-0
func PackBCD(n int) uint16 {
	hundreds := n / 100
	tens := (n - hundreds*100) / 10
	ones := n % 10

	result := uint16(hundreds&0xF) << 8
	result |= uint16(tens&0xF) << 4
	result |= uint16(ones & 0xF)

	return result
}

// unpackBCD reverses PackBCD, reporting false when a nibble is not a decimal digit
func unpackBCD(word uint16) (int, bool) {
	hundreds := int(word>>8) & 0xF
	tens := int(word>>4) & 0xF
	ones := int(word) & 0xF
	if hundreds > 9 || tens > 9 || ones > 9 {
		return 0, false
	}
	return hundreds*100 + tens*10 + ones, true
}
