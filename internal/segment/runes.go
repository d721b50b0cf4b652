package segment

import "unicode"

// IsHan reports whether r is a Chinese-script (Han) character.
// Covers the CJK Unified Ideographs block, its extensions, and the
// compatibility ideographs block.
func IsHan(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF:
		return true
	case r >= 0x3400 && r <= 0x4DBF:
		return true
	case r >= 0xF900 && r <= 0xFAFF:
		return true
	case r >= 0x20000 && r <= 0x2A6DF:
		return true
	case r >= 0x2A700 && r <= 0x2B73F:
		return true
	case r >= 0x2B740 && r <= 0x2B81F:
		return true
	case r >= 0x2B820 && r <= 0x2CEAF:
		return true
	case r >= 0x2CEB0 && r <= 0x2EBEF:
		return true
	}
	return false
}

func isASCIILetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isSpaceRune(r rune) bool {
	return unicode.IsSpace(r)
}

func isPunctRune(r rune) bool {
	return unicode.IsPunct(r)
}

func isSymbolRune(r rune) bool {
	return unicode.IsSymbol(r)
}
