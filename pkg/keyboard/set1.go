// Copyright 2026 The ringzero Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keyboard

import (
	"errors"
	"fmt"
)

// Decoding errors.
var (
	// ErrUnknownKeyCode is returned for a scancode with no key assigned.
	ErrUnknownKeyCode = errors.New("unknown key code")

	// ErrInvalidSequence is returned when a multi-byte sequence is broken
	// off by an unexpected byte.
	ErrInvalidSequence = errors.New("invalid scancode sequence")
)

// ScancodeSet turns a byte stream from the keyboard controller into key
// events.
type ScancodeSet interface {
	// Advance consumes one byte. It returns an event when b completes
	// one, ok=false when more bytes are needed or the sequence carries no
	// key, and an error when b cannot be decoded. Errors reset the
	// decoder.
	Advance(b byte) (ev KeyEvent, ok bool, err error)
}

// Set 1 framing bytes.
const (
	set1Extended  = 0xe0
	set1Extended2 = 0xe1
	set1Break     = 0x80

	// set1FakeShift is sent, extended, around some navigation keys and
	// Print Screen. It carries no key.
	set1FakeShift  = 0x2a
	set1FakeShift2 = 0x36
)

// set1Keys maps one-byte set 1 make codes to keys.
var set1Keys = [0x59]KeyCode{
	0x01: Escape,
	0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4, 0x06: Key5,
	0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0a: Key9, 0x0b: Key0,
	0x0c: Minus, 0x0d: Equals, 0x0e: Backspace, 0x0f: Tab,
	0x10: Q, 0x11: W, 0x12: E, 0x13: R, 0x14: T, 0x15: Y, 0x16: U, 0x17: I, 0x18: O, 0x19: P,
	0x1a: BracketSquareLeft, 0x1b: BracketSquareRight, 0x1c: Enter, 0x1d: ControlLeft,
	0x1e: A, 0x1f: S, 0x20: D, 0x21: F, 0x22: G, 0x23: H, 0x24: J, 0x25: K, 0x26: L,
	0x27: SemiColon, 0x28: Quote, 0x29: BackTick, 0x2a: ShiftLeft, 0x2b: BackSlash,
	0x2c: Z, 0x2d: X, 0x2e: C, 0x2f: V, 0x30: B, 0x31: N, 0x32: M,
	0x33: Comma, 0x34: Fullstop, 0x35: Slash, 0x36: ShiftRight, 0x37: NumpadStar,
	0x38: AltLeft, 0x39: Spacebar, 0x3a: CapsLock,
	0x3b: F1, 0x3c: F2, 0x3d: F3, 0x3e: F4, 0x3f: F5, 0x40: F6, 0x41: F7, 0x42: F8, 0x43: F9, 0x44: F10,
	0x45: NumpadLock, 0x46: ScrollLock,
	0x47: Numpad7, 0x48: Numpad8, 0x49: Numpad9, 0x4a: NumpadMinus,
	0x4b: Numpad4, 0x4c: Numpad5, 0x4d: Numpad6, 0x4e: NumpadPlus,
	0x4f: Numpad1, 0x50: Numpad2, 0x51: Numpad3, 0x52: Numpad0, 0x53: NumpadPeriod,
	0x56: Oem102, 0x57: F11, 0x58: F12,
}

// set1ExtendedKeys maps make codes that follow 0xe0.
var set1ExtendedKeys = map[byte]KeyCode{
	0x1c: NumpadEnter,
	0x1d: ControlRight,
	0x35: NumpadSlash,
	0x37: PrintScreen,
	0x38: AltRight,
	0x47: Home,
	0x48: ArrowUp,
	0x49: PageUp,
	0x4b: ArrowLeft,
	0x4d: ArrowRight,
	0x4f: End,
	0x50: ArrowDown,
	0x51: PageDown,
	0x52: Insert,
	0x53: Delete,
	0x5b: WindowsLeft,
	0x5c: WindowsRight,
	0x5d: Menus,
}

// set1State is the decoder position within a sequence.
type set1State int

const (
	set1Start set1State = iota
	set1AfterExtended
	set1AfterExtended2
	set1Extended2Second
)

// ScancodeSet1 decodes IBM scancode set 1, the set the 8042 controller
// translates to by default. Codes with bit 7 set are key releases. 0xe0
// prefixes extended keys; 0xe1 starts the Pause sequence, which has no
// release of its own: e1 1d 45 is reported as PauseBreak down and
// e1 9d c5 as PauseBreak up.
//
// The zero value is ready to use.
type ScancodeSet1 struct {
	state set1State
	first byte
}

// Advance implements ScancodeSet.Advance.
func (s *ScancodeSet1) Advance(b byte) (KeyEvent, bool, error) {
	switch s.state {
	case set1Start:
		switch b {
		case set1Extended:
			s.state = set1AfterExtended
			return KeyEvent{}, false, nil
		case set1Extended2:
			s.state = set1AfterExtended2
			return KeyEvent{}, false, nil
		}
		return decodeSet1(b, func(code byte) (KeyCode, bool) {
			if int(code) < len(set1Keys) && set1Keys[code] != KeyUnknown {
				return set1Keys[code], true
			}
			return KeyUnknown, false
		})

	case set1AfterExtended:
		s.state = set1Start
		if code := b &^ set1Break; code == set1FakeShift || code == set1FakeShift2 {
			return KeyEvent{}, false, nil
		}
		return decodeSet1(b, func(code byte) (KeyCode, bool) {
			k, ok := set1ExtendedKeys[code]
			return k, ok
		})

	case set1AfterExtended2:
		s.first = b
		s.state = set1Extended2Second
		return KeyEvent{}, false, nil

	case set1Extended2Second:
		s.state = set1Start
		switch {
		case s.first == 0x1d && b == 0x45:
			return KeyEvent{Code: PauseBreak, State: Down}, true, nil
		case s.first == 0x9d && b == 0xc5:
			return KeyEvent{Code: PauseBreak, State: Up}, true, nil
		}
		return KeyEvent{}, false, fmt.Errorf("%w: e1 %02x %02x", ErrInvalidSequence, s.first, b)
	}
	panic(fmt.Sprintf("bad set 1 state %d", s.state))
}

// decodeSet1 splits b into make or break and looks up its key.
func decodeSet1(b byte, lookup func(byte) (KeyCode, bool)) (KeyEvent, bool, error) {
	state := Down
	if b&set1Break != 0 {
		state = Up
	}
	k, ok := lookup(b &^ set1Break)
	if !ok {
		return KeyEvent{}, false, fmt.Errorf("%w: %#02x", ErrUnknownKeyCode, b)
	}
	return KeyEvent{Code: k, State: state}, true, nil
}

// set1Encode returns the make code of k and whether it is extended.
func set1Encode(k KeyCode) (code byte, extended bool, ok bool) {
	for c, kk := range set1Keys {
		if kk == k && k != KeyUnknown {
			return byte(c), false, true
		}
	}
	for c, kk := range set1ExtendedKeys {
		if kk == k {
			return c, true, true
		}
	}
	return 0, false, false
}
