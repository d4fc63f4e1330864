// Package testpackets provides hand-assembled answer-only response
// packets shared by tests across the module.
package testpackets

// ATV answers "atv." A 100.80.40.20.
func ATV() []byte {
	return []byte{
		0, 0, 0, 0, // id, flags
		0, 0, 0, 1, 0, 0, 0, 0, // 1 answer

		3, 'a', 't', 'v', 0x00, // atv.
		0x00, 0x01, // A
		0x80, 0x01, // cache flush, IN
		0, 0, 0, 5, // ttl
		0, 4,
		100, 80, 40, 20,
	}
}

// Airplay answers "airplay." A 100.80.40.20.
func Airplay() []byte {
	return []byte{
		0, 0, 0, 0,
		0, 0, 0, 1, 0, 0, 0, 0,

		7, 'a', 'i', 'r', 'p', 'l', 'a', 'y', 0x00,
		0x00, 0x01,
		0x80, 0x01,
		0, 0, 0, 5,
		0, 4,
		100, 80, 40, 20,
	}
}

// GTV answers "atv." A and "gtv.atv." TXT, the second name compressed.
func GTV() []byte {
	return []byte{
		0, 0, 0, 0,
		0, 0, 0, 2, 0, 0, 0, 0,

		3, 'a', 't', 'v', 0x00,
		0x00, 0x01,
		0x80, 0x01,
		0, 0, 0, 5,
		0, 4,
		100, 80, 40, 20,

		3, 'g', 't', 'v',
		0xc0, 12, // -> atv.
		0x00, 16, // TXT
		0x80, 0x01,
		0, 0, 0, 5,
		0, 3,
		'i', 's', 'o',
	}
}

// GoogleCast answers "_googlecast._tcp.local." PTR "tv-abc.local." and
// "tv-abc.local." A.
func GoogleCast() []byte {
	return []byte{
		0, 0, 0, 0,
		0, 0, 0, 2, 0, 0, 0, 0,

		11, '_', 'g', 'o', 'o', 'g', 'l', 'e', 'c', 'a', 's', 't',
		4, '_', 't', 'c', 'p',
		5, 'l', 'o', 'c', 'a', 'l', 0x00,
		0x00, 0x0c, // PTR
		0x80, 0x01,
		0, 0, 0, 5,
		0, 9,
		6, 't', 'v', '-', 'a', 'b', 'c',
		0xc0, 29, // -> local.

		0xc0, 46, // -> tv-abc.local.
		0x00, 0x01,
		0x80, 0x01,
		0, 0, 0, 5,
		0, 4,
		100, 80, 40, 20,
	}
}

// Another answers "another." A 10.0.0.1.
func Another() []byte {
	return []byte{
		0, 0, 0, 0,
		0, 0, 0, 1, 0, 0, 0, 0,

		7, 'a', 'n', 'o', 't', 'h', 'e', 'r', 0x00,
		0x00, 0x01,
		0x80, 0x01,
		0, 0, 0, 5,
		0, 4,
		10, 0, 0, 1,
	}
}
