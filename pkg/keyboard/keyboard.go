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

// Package keyboard decodes PS/2 keyboard scancodes into key events and
// characters.
//
// Decoding happens in two stages. A ScancodeSet turns raw controller bytes
// into KeyEvents. Keyboard tracks modifier state across events and asks a
// Layout what each key press types.
package keyboard

// Keyboard decodes a scancode byte stream. It is not safe for concurrent
// use; callers that feed it from an interrupt handler must serialize access.
type Keyboard struct {
	set    ScancodeSet
	layout Layout
	ctrl   HandleControl
	mods   Modifiers
}

// New returns a keyboard decoding set through layout. Num lock starts on.
func New(set ScancodeSet, layout Layout, ctrl HandleControl) *Keyboard {
	return &Keyboard{
		set:    set,
		layout: layout,
		ctrl:   ctrl,
		mods:   Modifiers{NumLock: true},
	}
}

// AddByte feeds one scancode byte. It returns a key event once a complete
// sequence has arrived.
func (k *Keyboard) AddByte(b byte) (KeyEvent, bool, error) {
	return k.set.Advance(b)
}

// ProcessKeyEvent updates modifier state from ev and returns what the key
// types, if anything. Releases and modifier keys type nothing.
func (k *Keyboard) ProcessKeyEvent(ev KeyEvent) (DecodedKey, bool) {
	down := ev.State == Down
	switch ev.Code {
	case ShiftLeft:
		k.mods.LShift = down
	case ShiftRight:
		k.mods.RShift = down
	case ControlLeft:
		k.mods.LCtrl = down
	case ControlRight:
		k.mods.RCtrl = down
	case AltRight:
		k.mods.AltGr = down
	case CapsLock:
		if down {
			k.mods.CapsLock = !k.mods.CapsLock
		}
	case NumpadLock:
		if down {
			k.mods.NumLock = !k.mods.NumLock
		}
	default:
		if !down {
			return DecodedKey{}, false
		}
		return k.layout.MapKeycode(ev.Code, k.mods, k.ctrl), true
	}
	return DecodedKey{}, false
}

// Modifiers returns the current modifier state.
func (k *Keyboard) Modifiers() Modifiers {
	return k.mods
}

// Decode is AddByte followed by ProcessKeyEvent. Bytes that complete no
// typing key return ok=false.
func (k *Keyboard) Decode(b byte) (key DecodedKey, ok bool, err error) {
	ev, ok, err := k.AddByte(b)
	if err != nil || !ok {
		return DecodedKey{}, false, err
	}
	key, ok = k.ProcessKeyEvent(ev)
	return key, ok, nil
}
