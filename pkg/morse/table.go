package morse

import "strings"

// codeTable maps supported characters to their international Morse pattern
var codeTable = map[rune]string{
	'A': ".-",
	'B': "-...",
	'C': "-.-.",
	'D': "-..",
	'E': ".",
	'F': "..-.",
	'G': "--.",
	'H': "....",
	'I': "..",
	'J': ".---",
	'K': "-.-",
	'L': ".-..",
	'M': "--",
	'N': "-.",
	'O': "---",
	'P': ".--.",
	'Q': "--.-",
	'R': ".-.",
	'S': "...",
	'T': "-",
	'U': "..-",
	'V': "...-",
	'W': ".--",
	'X': "-..-",
	'Y': "-.--",
	'Z': "--..",
	'0': "-----",
	'1': ".----",
	'2': "..---",
	'3': "...--",
	'4': "....-",
	'5': ".....",
	'6': "-....",
	'7': "--...",
	'8': "---..",
	'9': "----.",
	'.': ".-.-.-",
	',': "--..--",
	'?': "..--..",
	'=': "-...-",
	'/': "-..-.",
}

// Lookup returns the dot/dash pattern for r. ASCII letters are
// case-insensitive; no other rune is folded onto a table entry.
func Lookup(r rune) (string, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	code, ok := codeTable[r]
	return code, ok
}

// Supported reports whether r can be keyed
func Supported(r rune) bool {
	_, ok := Lookup(r)
	return ok
}

// Characters returns every supported character in no particular order
func Characters() []rune {
	chars := make([]rune, 0, len(codeTable))
	for r := range codeTable {
		chars = append(chars, r)
	}
	return chars
}

// Encode renders text as dot/dash groups separated by spaces, with " / "
// between words. Unsupported characters are dropped the same way the
// keyer drops them.
func Encode(text string) string {
	var groups []string
	for _, r := range text {
		if r == ' ' {
			groups = append(groups, "/")
			continue
		}
		if code, ok := Lookup(r); ok {
			groups = append(groups, code)
		}
	}
	return strings.Join(groups, " ")
}
