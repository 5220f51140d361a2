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

// KeyCode identifies a physical key, independent of layout.
type KeyCode int

// Key codes, in roughly the order keys appear on a 104-key board.
const (
	KeyUnknown KeyCode = iota

	Escape
	F1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
	PrintScreen
	ScrollLock
	PauseBreak

	BackTick
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	Minus
	Equals
	Backspace

	Tab
	Q
	W
	E
	R
	T
	Y
	U
	I
	O
	P
	BracketSquareLeft
	BracketSquareRight
	BackSlash

	CapsLock
	A
	S
	D
	F
	G
	H
	J
	K
	L
	SemiColon
	Quote
	Enter

	ShiftLeft
	Z
	X
	C
	V
	B
	N
	M
	Comma
	Fullstop
	Slash
	ShiftRight
	Oem102

	ControlLeft
	WindowsLeft
	AltLeft
	Spacebar
	AltRight
	WindowsRight
	Menus
	ControlRight

	Insert
	Home
	PageUp
	Delete
	End
	PageDown
	ArrowUp
	ArrowLeft
	ArrowDown
	ArrowRight

	NumpadLock
	NumpadSlash
	NumpadStar
	NumpadMinus
	Numpad7
	Numpad8
	Numpad9
	NumpadPlus
	Numpad4
	Numpad5
	Numpad6
	Numpad1
	Numpad2
	Numpad3
	NumpadEnter
	Numpad0
	NumpadPeriod

	numKeyCodes
)

var keyNames = [numKeyCodes]string{
	KeyUnknown: "Unknown",
	Escape: "Escape", F1: "F1", F2: "F2", F3: "F3", F4: "F4", F5: "F5", F6: "F6",
	F7: "F7", F8: "F8", F9: "F9", F10: "F10", F11: "F11", F12: "F12",
	PrintScreen: "PrintScreen", ScrollLock: "ScrollLock", PauseBreak: "PauseBreak",
	BackTick: "BackTick", Key1: "Key1", Key2: "Key2", Key3: "Key3", Key4: "Key4",
	Key5: "Key5", Key6: "Key6", Key7: "Key7", Key8: "Key8", Key9: "Key9", Key0: "Key0",
	Minus: "Minus", Equals: "Equals", Backspace: "Backspace",
	Tab: "Tab", Q: "Q", W: "W", E: "E", R: "R", T: "T", Y: "Y", U: "U", I: "I", O: "O", P: "P",
	BracketSquareLeft: "BracketSquareLeft", BracketSquareRight: "BracketSquareRight", BackSlash: "BackSlash",
	CapsLock: "CapsLock", A: "A", S: "S", D: "D", F: "F", G: "G", H: "H", J: "J", K: "K", L: "L",
	SemiColon: "SemiColon", Quote: "Quote", Enter: "Enter",
	ShiftLeft: "ShiftLeft", Z: "Z", X: "X", C: "C", V: "V", B: "B", N: "N", M: "M",
	Comma: "Comma", Fullstop: "Fullstop", Slash: "Slash", ShiftRight: "ShiftRight", Oem102: "Oem102",
	ControlLeft: "ControlLeft", WindowsLeft: "WindowsLeft", AltLeft: "AltLeft", Spacebar: "Spacebar",
	AltRight: "AltRight", WindowsRight: "WindowsRight", Menus: "Menus", ControlRight: "ControlRight",
	Insert: "Insert", Home: "Home", PageUp: "PageUp", Delete: "Delete", End: "End", PageDown: "PageDown",
	ArrowUp: "ArrowUp", ArrowLeft: "ArrowLeft", ArrowDown: "ArrowDown", ArrowRight: "ArrowRight",
	NumpadLock: "NumpadLock", NumpadSlash: "NumpadSlash", NumpadStar: "NumpadStar", NumpadMinus: "NumpadMinus",
	Numpad7: "Numpad7", Numpad8: "Numpad8", Numpad9: "Numpad9", NumpadPlus: "NumpadPlus",
	Numpad4: "Numpad4", Numpad5: "Numpad5", Numpad6: "Numpad6",
	Numpad1: "Numpad1", Numpad2: "Numpad2", Numpad3: "Numpad3", NumpadEnter: "NumpadEnter",
	Numpad0: "Numpad0", NumpadPeriod: "NumpadPeriod",
}

func (k KeyCode) String() string {
	if k >= 0 && k < numKeyCodes && keyNames[k] != "" {
		return keyNames[k]
	}
	return fmt.Sprintf("KeyCode(%d)", int(k))
}

// KeyState is the direction of a key transition.
type KeyState int

// Key states.
const (
	Up KeyState = iota
	Down
)

func (s KeyState) String() string {
	if s == Down {
		return "Down"
	}
	return "Up"
}

// KeyEvent is one key transition.
type KeyEvent struct {
	Code  KeyCode
	State KeyState
}

func (e KeyEvent) String() string {
	return fmt.Sprintf("%v %v", e.Code, e.State)
}
