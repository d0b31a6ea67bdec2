// Package protocol implements the sensor wire protocol: decoding a reading
// into a category and value, applying threshold rules and choosing the reply
// directive sent back to the client.
package protocol

// Category selects the sensor class a reading belongs to. It is the least
// significant decimal digit of the reading.
type Category int

const (
	CategoryProximity      Category = 0 // Ultrasonic distance sensor, drives the buzzer
	CategoryLight          Category = 1 // Light (CDS) sensor, drives the LED
	CategoryIdentification Category = 2 // RFID reader, drives the servo motor
)

// String returns a short name for the category.
func (c Category) String() string {
	switch c {
	case CategoryProximity:
		return "proximity"
	case CategoryLight:
		return "light"
	case CategoryIdentification:
		return "identification"
	default:
		return "unknown"
	}
}

// Message is one decoded reading.
type Message struct {
	Category Category
	Value    int
}

// Decode splits a reading n into its category (n mod 10) and value (n div 10).
// Both use truncated division, so a negative reading yields a negative
// category.
func Decode(n int) Message {
	return Message{
		Category: Category(n % 10),
		Value:    n / 10,
	}
}

// ParseMessage decodes the payload of one read.
func ParseMessage(data []byte) Message {
	return Decode(ParseInt(data))
}

// ParseInt converts data to an integer permissively: leading ASCII whitespace
// is skipped, an optional sign is accepted, and digits are consumed up to the
// first non-digit byte. Input without digits yields 0. Values that do not fit
// saturate at the int bounds.
func ParseInt(data []byte) int {
	const (
		maxInt = int(^uint(0) >> 1)
		minInt = -maxInt - 1
	)

	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}

	negative := false
	if i < len(data) && (data[i] == '+' || data[i] == '-') {
		negative = data[i] == '-'
		i++
	}

	n := 0
	for ; i < len(data) && data[i] >= '0' && data[i] <= '9'; i++ {
		d := int(data[i] - '0')
		if negative {
			if n < (minInt+d)/10 {
				return minInt
			}
			n = n*10 - d
		} else {
			if n > (maxInt-d)/10 {
				return maxInt
			}
			n = n*10 + d
		}
	}

	return n
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}

	return false
}
