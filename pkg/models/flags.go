package models

import "parley/pkg/apperr"

// MessageFlag is a bit position in the message flag field.
type MessageFlag uint32

const (
	FlagSuppressNotifications MessageFlag = 0
	FlagMentionsEveryone      MessageFlag = 1
	FlagMentionsOnline        MessageFlag = 2
)

// maxFlagValue is the highest raw value whose bits all fall inside the
// defined set.
const maxFlagValue = 1<<3 - 1

// MessageFlags packs the boolean message properties into a fixed-width
// bitfield.
type MessageFlags uint32

// Has reports whether the given bit is set.
func (f MessageFlags) Has(flag MessageFlag) bool {
	return f&(1<<flag) != 0
}

// Set sets or clears the given bit.
func (f *MessageFlags) Set(flag MessageFlag, on bool) {
	if on {
		*f |= 1 << flag
	} else {
		*f &^= 1 << flag
	}
}

// ValidateRawFlags fast-rejects raw values carrying bits outside the
// defined set. This is a reject, not a mask: 8 fails even though its low
// bits are clean.
func ValidateRawFlags(raw uint32) error {
	if raw > maxFlagValue {
		return apperr.New(apperr.KindInvalidProperty)
	}
	return nil
}
