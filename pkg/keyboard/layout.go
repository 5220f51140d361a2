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
	"fmt"
)

// Modifiers is the latched state of the modifier and lock keys.
type Modifiers struct {
	LShift   bool
	RShift   bool
	LCtrl    bool
	RCtrl    bool
	NumLock  bool
	CapsLock bool
	AltGr    bool
}

// IsShifted reports whether either shift key is held.
func (m Modifiers) IsShifted() bool {
	return m.LShift || m.RShift
}

// IsCtrl reports whether either control key is held.
func (m Modifiers) IsCtrl() bool {
	return m.LCtrl || m.RCtrl
}

// IsCaps reports whether letters come out upper case: shift and caps lock
// cancel each other.
func (m Modifiers) IsCaps() bool {
	return m.IsShifted() != m.CapsLock
}

// HandleControl selects what Ctrl does to letter keys.
type HandleControl int

const (
	// Ignore decodes Ctrl+letter as the plain letter.
	Ignore HandleControl = iota

	// MapLettersToUnicode decodes Ctrl+A through Ctrl+Z as U+0001
	// through U+001A.
	MapLettersToUnicode
)

// DecodedKeyKind says which field of a DecodedKey is meaningful.
type DecodedKeyKind int

// Decoded key kinds.
const (
	// RawKey is a key with no character, such as an arrow.
	RawKey DecodedKeyKind = iota

	// Unicode is a key that produced a character.
	Unicode
)

// DecodedKey is the result of running a key press through a layout.
type DecodedKey struct {
	Kind DecodedKeyKind
	Rune rune
	Code KeyCode
}

func (d DecodedKey) String() string {
	if d.Kind == Unicode {
		return fmt.Sprintf("Unicode(%q)", d.Rune)
	}
	return fmt.Sprintf("RawKey(%v)", d.Code)
}

func unicode(r rune) DecodedKey {
	return DecodedKey{Kind: Unicode, Rune: r}
}

func raw(k KeyCode) DecodedKey {
	return DecodedKey{Kind: RawKey, Code: k}
}

// Layout maps a pressed key to what it types.
type Layout interface {
	MapKeycode(k KeyCode, mods Modifiers, ctrl HandleControl) DecodedKey
}

// Us104Key is the United States 104-key layout.
type Us104Key struct{}

// us104Pair is the unshifted and shifted character of a key.
type us104Pair struct {
	plain, shifted rune
}

// us104Symbols maps non-letter keys that type characters.
var us104Symbols = map[KeyCode]us104Pair{
	BackTick:           {'`', '~'},
	Key1:               {'1', '!'},
	Key2:               {'2', '@'},
	Key3:               {'3', '#'},
	Key4:               {'4', '$'},
	Key5:               {'5', '%'},
	Key6:               {'6', '^'},
	Key7:               {'7', '&'},
	Key8:               {'8', '*'},
	Key9:               {'9', '('},
	Key0:               {'0', ')'},
	Minus:              {'-', '_'},
	Equals:             {'=', '+'},
	BracketSquareLeft:  {'[', '{'},
	BracketSquareRight: {']', '}'},
	BackSlash:          {'\\', '|'},
	Oem102:             {'\\', '|'},
	SemiColon:          {';', ':'},
	Quote:              {'\'', '"'},
	Comma:              {',', '<'},
	Fullstop:           {'.', '>'},
	Slash:              {'/', '?'},
	Spacebar:           {' ', ' '},
	Tab:                {'\t', '\t'},
	Enter:              {'\n', '\n'},
	Backspace:          {'\b', '\b'},
	Escape:             {0x1b, 0x1b},
	Delete:             {0x7f, 0x7f},
	NumpadSlash:        {'/', '/'},
	NumpadStar:         {'*', '*'},
	NumpadMinus:        {'-', '-'},
	NumpadPlus:         {'+', '+'},
	NumpadEnter:        {'\n', '\n'},
}

// us104Letters lists the letter keys by the letter they type.
var us104Letters = map[KeyCode]rune{
	A: 'a', B: 'b', C: 'c', D: 'd', E: 'e', F: 'f', G: 'g', H: 'h', I: 'i',
	J: 'j', K: 'k', L: 'l', M: 'm', N: 'n', O: 'o', P: 'p', Q: 'q', R: 'r',
	S: 's', T: 't', U: 'u', V: 'v', W: 'w', X: 'x', Y: 'y', Z: 'z',
}

// us104Numpad maps keypad keys to their digit (num lock on) and navigation
// key (num lock off).
var us104Numpad = map[KeyCode]struct {
	digit rune
	nav   KeyCode
}{
	Numpad0:      {'0', Insert},
	Numpad1:      {'1', End},
	Numpad2:      {'2', ArrowDown},
	Numpad3:      {'3', PageDown},
	Numpad4:      {'4', ArrowLeft},
	Numpad5:      {'5', KeyUnknown},
	Numpad6:      {'6', ArrowRight},
	Numpad7:      {'7', Home},
	Numpad8:      {'8', ArrowUp},
	Numpad9:      {'9', PageUp},
	NumpadPeriod: {'.', Delete},
}

// MapKeycode implements Layout.MapKeycode.
func (Us104Key) MapKeycode(k KeyCode, mods Modifiers, ctrl HandleControl) DecodedKey {
	if r, ok := us104Letters[k]; ok {
		if ctrl == MapLettersToUnicode && mods.IsCtrl() {
			return unicode(r - 'a' + 1)
		}
		if mods.IsCaps() {
			return unicode(r - 'a' + 'A')
		}
		return unicode(r)
	}
	if p, ok := us104Symbols[k]; ok {
		if mods.IsShifted() {
			return unicode(p.shifted)
		}
		return unicode(p.plain)
	}
	if n, ok := us104Numpad[k]; ok {
		if mods.NumLock {
			return unicode(n.digit)
		}
		if n.nav == KeyUnknown {
			return raw(k)
		}
		if n.nav == Delete {
			return unicode(0x7f)
		}
		return raw(n.nav)
	}
	return raw(k)
}
