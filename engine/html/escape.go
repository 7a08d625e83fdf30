package html

import "github.com/benmills/robotskirt/buffer"

var htmlEscapes = [256]string{
	'"':  "&quot;",
	'&':  "&amp;",
	'\'': "&#39;",
	'<':  "&lt;",
	'>':  "&gt;",
}

func escapeHTML(ob *buffer.Buffer, text []byte) {
	start := 0
	for i, c := range text {
		esc := htmlEscapes[c]
		if esc == "" {
			continue
		}
		ob.Put(text[start:i])
		ob.PutString(esc)
		start = i + 1
	}
	ob.Put(text[start:])
}

// hrefSafe marks the bytes copied unchanged into an href attribute.
var hrefSafe [256]bool

func init() {
	for c := '0'; c <= '9'; c++ {
		hrefSafe[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		hrefSafe[c] = true
		hrefSafe[c-'a'+'A'] = true
	}
	for _, c := range "-_.+!*(),%#@?=;:/$~[]" {
		hrefSafe[c] = true
	}
}

const hexDigits = "0123456789ABCDEF"

func escapeHref(ob *buffer.Buffer, link []byte) {
	for _, c := range link {
		switch {
		case hrefSafe[c]:
			ob.PutByte(c)
		case c == '&':
			ob.PutString("&amp;")
		case c == '\'':
			ob.PutString("&#x27;")
		default:
			ob.PutByte('%')
			ob.PutByte(hexDigits[c>>4])
			ob.PutByte(hexDigits[c&0xF])
		}
	}
}
